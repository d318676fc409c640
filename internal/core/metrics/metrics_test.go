package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	before := testutil.ToFloat64(WorkflowTransitions.WithLabelValues("dictation", "in_progress"))
	Transition("dictation", "in_progress")
	after := testutil.ToFloat64(WorkflowTransitions.WithLabelValues("dictation", "in_progress"))
	assert.Equal(t, before+1, after)
}

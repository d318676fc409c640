package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscription_Edit(t *testing.T) {
	t.Parallel()
	now := time.Now()

	tr := NewTranscription("t1", "d1", "s1", "first")
	require.NoError(t, tr.Edit("autosaved", true, now))
	assert.Equal(t, 1, tr.Version)
	assert.Equal(t, TranscriptionDraft, tr.Status)
	assert.Equal(t, &now, tr.LastAutosaveAt)

	require.NoError(t, tr.Edit("manual", false, now))
	assert.Equal(t, 2, tr.Version)
	assert.Equal(t, "manual", tr.Content)

	tr.Status = TranscriptionRejected
	require.NoError(t, tr.Edit("fixed", true, now))
	assert.Equal(t, TranscriptionRevised, tr.Status)

	for _, st := range []TranscriptionStatus{TranscriptionSubmitted, TranscriptionApproved} {
		tr.Status = st
		assert.ErrorIs(t, tr.Edit("x", false, now), ErrConflict)
	}
}

func TestTranscription_Submit(t *testing.T) {
	t.Parallel()
	now := time.Now()

	tr := NewTranscription("t1", "d1", "s1", " \n\t ")
	assert.ErrorIs(t, tr.Submit(now), ErrValidation)
	assert.Equal(t, TranscriptionDraft, tr.Status)

	tr.Content = "Patient presents with cough."
	require.NoError(t, tr.Submit(now))
	assert.Equal(t, TranscriptionSubmitted, tr.Status)
	assert.NotNil(t, tr.SubmittedAt)

	assert.ErrorIs(t, tr.Submit(now), ErrConflict)
}

func TestTranscription_Review(t *testing.T) {
	t.Parallel()
	now := time.Now()

	tr := NewTranscription("t1", "d1", "s1", "text")
	assert.ErrorIs(t, tr.Review("doc", true, "", "", now), ErrConflict)

	require.NoError(t, tr.Submit(now))
	assert.ErrorIs(t, tr.Review("doc", false, "", "  ", now), ErrValidation)
	assert.Equal(t, TranscriptionSubmitted, tr.Status)

	require.NoError(t, tr.Review("doc", false, "see notes", "illegible", now))
	assert.Equal(t, TranscriptionRejected, tr.Status)
	assert.Equal(t, "illegible", tr.RejectionReason)
	require.NotNil(t, tr.ReviewerID)
	assert.Equal(t, "doc", *tr.ReviewerID)

	require.NoError(t, tr.Edit("better", false, now))
	require.NoError(t, tr.Submit(now))
	require.NoError(t, tr.Review("doc", true, "", "", now))
	assert.Equal(t, TranscriptionApproved, tr.Status)
	assert.Empty(t, tr.RejectionReason)
}

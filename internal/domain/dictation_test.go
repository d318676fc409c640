package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestDictation_Claim(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	later := now.Add(time.Hour)

	tests := []struct {
		name        string
		d           Dictation
		secretary   string
		wantChanged bool
		wantErr     error
		wantStatus  DictationStatus
	}{
		{
			name:        "pending unclaimed",
			d:           Dictation{Status: DictationPending},
			secretary:   "s1",
			wantChanged: true,
			wantStatus:  DictationInProgress,
		},
		{
			name:        "assigned to same secretary",
			d:           Dictation{Status: DictationAssigned, SecretaryID: strp("s1"), ClaimedAt: &now},
			secretary:   "s1",
			wantChanged: true,
			wantStatus:  DictationInProgress,
		},
		{
			name:       "assigned to other secretary",
			d:          Dictation{Status: DictationAssigned, SecretaryID: strp("s2"), ClaimedAt: &now},
			secretary:  "s1",
			wantErr:    ErrConflict,
			wantStatus: DictationAssigned,
		},
		{
			name:       "in progress by other",
			d:          Dictation{Status: DictationInProgress, SecretaryID: strp("s2"), ClaimedAt: &now},
			secretary:  "s1",
			wantErr:    ErrConflict,
			wantStatus: DictationInProgress,
		},
		{
			name:        "idempotent reclaim",
			d:           Dictation{Status: DictationInProgress, SecretaryID: strp("s1"), ClaimedAt: &now},
			secretary:   "s1",
			wantChanged: false,
			wantStatus:  DictationInProgress,
		},
		{
			name:       "completed",
			d:          Dictation{Status: DictationCompleted},
			secretary:  "s1",
			wantErr:    ErrConflict,
			wantStatus: DictationCompleted,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := tt.d
			before := d
			changed, err := d.Claim(tt.secretary, later)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, d)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantStatus, d.Status)
			assert.True(t, d.ClaimedBy(tt.secretary))
			assert.True(t, d.Consistent())
			if !changed {
				assert.Equal(t, now, *d.ClaimedAt)
			} else {
				assert.Equal(t, later, *d.ClaimedAt)
			}
		})
	}
}

func TestDictation_Unclaim(t *testing.T) {
	t.Parallel()
	now := time.Now()

	d := Dictation{Status: DictationInProgress, SecretaryID: strp("s1"), ClaimedAt: &now}
	require.NoError(t, d.Unclaim())
	assert.Equal(t, DictationPending, d.Status)
	assert.Nil(t, d.SecretaryID)
	assert.Nil(t, d.ClaimedAt)

	err := d.Unclaim()
	assert.ErrorIs(t, err, ErrConflict)
}

func TestDictation_SetStatus(t *testing.T) {
	t.Parallel()
	now := time.Now()

	d := Dictation{Status: DictationPending}
	err := d.SetStatus(DictationInProgress, now)
	require.ErrorIs(t, err, ErrConflict)

	d = Dictation{Status: DictationInProgress, SecretaryID: strp("s1"), ClaimedAt: &now}
	require.NoError(t, d.SetStatus(DictationCompleted, now))
	assert.Nil(t, d.SecretaryID)
	assert.NotNil(t, d.CompletedAt)
	assert.True(t, d.Consistent())

	err = d.SetStatus("bogus", now)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestDictation_CompletionAndReview(t *testing.T) {
	t.Parallel()
	now := time.Now()

	d := Dictation{Status: DictationInProgress, SecretaryID: strp("s1"), ClaimedAt: &now}
	require.NoError(t, d.MarkCompleted(now))
	assert.Equal(t, DictationCompleted, d.Status)
	assert.True(t, d.Consistent())

	require.NoError(t, d.ApplyReview(false))
	assert.Equal(t, DictationRejected, d.Status)

	require.NoError(t, d.MarkCompleted(now))
	require.NoError(t, d.ApplyReview(true))
	assert.Equal(t, DictationReviewed, d.Status)

	assert.ErrorIs(t, d.ApplyReview(true), ErrConflict)
	assert.ErrorIs(t, (&Dictation{Status: DictationPending}).MarkCompleted(now), ErrConflict)
}

func TestDictation_CheckDeletable(t *testing.T) {
	t.Parallel()
	assert.ErrorIs(t, (&Dictation{Status: DictationInProgress}).CheckDeletable(), ErrConflict)
	assert.NoError(t, (&Dictation{Status: DictationPending}).CheckDeletable())
}

func TestPriority_Rank(t *testing.T) {
	t.Parallel()
	assert.Greater(t, PriorityUrgent.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.Greater(t, PriorityNormal.Rank(), PriorityLow.Rank())
	assert.False(t, Priority("meh").Valid())
}

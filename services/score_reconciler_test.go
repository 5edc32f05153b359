package services

import (
	"testing"
	"time"

	"bingo-event-system/cache"
	"bingo-event-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileOnceRepairsDriftedScores(t *testing.T) {
	f := newFixture(t)
	event := f.createEvent(t, "alice", "Movie Night", true, nil)
	bob := f.join(t, "bob", event.ID, "")
	carol := f.join(t, "carol", event.ID, "")
	drifted := f.createCard(t, "bob", event.ID, bob.ID, "b")
	healthy := f.createCard(t, "carol", event.ID, carol.ID, "c")
	f.advance(t, "alice", event.ID, drifted.ID, 1)
	f.advance(t, "alice", event.ID, healthy.ID, 1)

	require.NoError(t, f.db.Model(&models.BingoCard{}).Where("id = ?", drifted.ID).UpdateColumn("score", 7).Error)
	_, err := f.boards.EventLeaderboard(f.ctx, "", event.ID)
	require.NoError(t, err)

	r := NewScoreReconciler(f.db, f.views, time.Minute)
	repaired, err := r.ReconcileOnce(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	var stored models.BingoCard
	require.NoError(t, f.db.First(&stored, "id = ?", drifted.ID).Error)
	assert.Equal(t, 1, stored.Score)
	assert.Equal(t, 2, stored.Revision)
	assert.False(t, f.views.Has(cache.EventLeaderboardKey(event.ID)))

	repaired, err = r.ReconcileOnce(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

func TestScoreReconcilerStartStop(t *testing.T) {
	f := newFixture(t)
	r := NewScoreReconciler(f.db, nil, time.Hour)

	require.NoError(t, r.Start())
	assert.NoError(t, r.Stop())

	idle := NewScoreReconciler(f.db, nil, time.Hour)
	assert.NoError(t, idle.Stop())
}

package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"bingo-event-system/cache"
	"bingo-event-system/metrics"
	"bingo-event-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

const reconcileBatchSize = 200

// ScoreReconciler periodically recomputes every card's score from its cells
// and repairs rows whose stored score drifted.
type ScoreReconciler struct {
	DB       *gorm.DB
	Views    cache.ViewCache
	Interval time.Duration

	scheduler gocron.Scheduler
}

func NewScoreReconciler(db *gorm.DB, views cache.ViewCache, interval time.Duration) *ScoreReconciler {
	return &ScoreReconciler{DB: db, Views: orNoopCache(views), Interval: interval}
}

// Start schedules the job. Runs never overlap.
func (r *ScoreReconciler) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(r.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), r.Interval)
			defer cancel()
			if _, err := r.ReconcileOnce(ctx); err != nil {
				log.Printf("[SCHEDULER] score reconciliation failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("score-reconciler"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("schedule score reconciler: %w", err)
	}

	sched.Start()
	r.scheduler = sched
	log.Printf("✅ [SCHEDULER] score reconciler running every %s", r.Interval)
	return nil
}

// Stop shuts the scheduler down and waits for a running job.
func (r *ScoreReconciler) Stop() error {
	if r.scheduler == nil {
		return nil
	}
	return r.scheduler.Shutdown()
}

// ReconcileOnce scans every card and returns how many scores were repaired.
func (r *ScoreReconciler) ReconcileOnce(ctx context.Context) (int, error) {
	type drift struct {
		cardID   string
		revision int
		score    int
	}
	var drifted []drift

	var batch []models.BingoCard
	res := r.DB.WithContext(ctx).FindInBatches(&batch, reconcileBatchSize, func(tx *gorm.DB, _ int) error {
		for _, card := range batch {
			if want := card.Cells.Score(); want != card.Score {
				drifted = append(drifted, drift{cardID: card.ID, revision: card.Revision, score: want})
			}
		}
		return nil
	})
	if res.Error != nil {
		return 0, fmt.Errorf("scan cards: %w", res.Error)
	}

	repaired := 0
	for _, d := range drifted {
		// A card written since the scan already carries a fresh score.
		upd := r.DB.WithContext(ctx).Model(&models.BingoCard{}).
			Where("id = ? AND revision = ?", d.cardID, d.revision).
			UpdateColumn("score", d.score)
		if upd.Error != nil {
			log.Printf("[SCHEDULER] failed to repair card %s: %v", d.cardID, upd.Error)
			continue
		}
		if upd.RowsAffected == 0 {
			continue
		}
		repaired++

		var p models.EventParticipant
		if err := r.DB.WithContext(ctx).Joins("JOIN bingo_cards ON bingo_cards.event_participant_id = event_participants.id").
			Where("bingo_cards.id = ?", d.cardID).First(&p).Error; err == nil {
			invalidateEvent(ctx, r.Views, p.EventID)
		}
	}

	if repaired > 0 {
		metrics.ObserveReconciled(repaired)
		log.Printf("[SCHEDULER] repaired %d card scores", repaired)
	}
	return repaired, nil
}

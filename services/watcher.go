package services

import (
	"context"
	"log"
	"time"

	"shortstay-server/models"

	"gorm.io/gorm"
)

// AutoReleaseWatcher periodically releases escrowed funds for bookings whose
// guest never confirmed arrival before the deadline. It is constructed at
// process startup with its dependencies injected; tests drive Sweep directly
// with a controlled clock instead of waiting on the ticker.
type AutoReleaseWatcher struct {
	DB       *gorm.DB
	Bookings *BookingService
	Interval time.Duration
	Batch    int
	Now      func() time.Time
}

func NewAutoReleaseWatcher(db *gorm.DB, bookings *BookingService, cfg Config) *AutoReleaseWatcher {
	return &AutoReleaseWatcher{
		DB:       db,
		Bookings: bookings,
		Interval: cfg.SweepInterval,
		Batch:    cfg.WatcherBatchSize,
		Now:      time.Now,
	}
}

// Start runs the sweep loop until ctx is cancelled.
func (w *AutoReleaseWatcher) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		log.Printf("auto-release watcher started, interval %s, batch %d", w.Interval, w.Batch)
		for {
			select {
			case <-ctx.Done():
				log.Println("auto-release watcher stopped")
				return
			case <-ticker.C:
				if n, err := w.Sweep(ctx); err != nil {
					log.Printf("auto-release sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("auto-release sweep processed %d bookings", n)
				}
			}
		}
	}()
}

// Sweep finds up to Batch bookings past their auto-release deadline with an
// unfinished payout and forces arrival confirmation + release for each. One
// booking's failure never blocks the rest of the batch; failures stay in a
// retryable state for the next tick.
func (w *AutoReleaseWatcher) Sweep(ctx context.Context) (int, error) {
	now := w.Now()

	var due []models.Booking
	err := w.DB.
		Where("auto_release_at <= ?", now).
		Where("payment_status = ?", models.PaymentStatusCompleted).
		Where("status IN ?", []string{models.BookingStatusAwaitingArrival, models.BookingStatusInProgress}).
		Where("payout_status IN ?", []string{
			models.PayoutStatusPending,
			models.PayoutStatusReady,
			models.PayoutStatusFailed,
		}).
		Order("auto_release_at ASC").
		Limit(w.Batch).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		booking := &due[i]
		if _, err := w.Bookings.ConfirmArrival(ctx, booking.ID, nil, ReleaseReasonAutoRelease); err != nil {
			log.Printf("auto-release: booking %d not processed: %v", booking.ID, err)
			continue
		}
		processed++
	}
	return processed, nil
}

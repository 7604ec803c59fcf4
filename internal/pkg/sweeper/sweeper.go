package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/eventkasse/eventkasse/app/models"
	"github.com/eventkasse/eventkasse/internal/pkg/queue"
)

// How long a processing claim may sit before the row counts as abandoned.
// Matches the takeover window of the idempotency store.
const staleClaimAfter = 10 * time.Minute

// How long a failed_retryable row may wait before we stop trusting the
// queue's own retry schedule and republish it ourselves.
const retryLagAfter = 30 * time.Minute

const sweepBatchSize = 100

// Sweeper periodically republishes webhook events the queue lost track of:
// rows stuck in processing past the claim window (worker died mid-run) and
// retryable failures whose queue-side retries dried up. Republishing is safe
// because delivery is idempotent end to end.
type Sweeper struct {
	db        *gorm.DB
	publisher queue.Publisher
	interval  time.Duration

	ticker  *time.Ticker
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func New(db *gorm.DB, publisher queue.Publisher, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		db:        db,
		publisher: publisher,
		interval:  interval,
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.ticker = time.NewTicker(s.interval)
	s.wg.Add(1)
	go s.loop()

	log.Infof("[Sweeper] Started, sweeping every %s", s.interval)
}

// Stop halts the sweep loop and waits for an in-progress sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.ticker.Stop()
	close(s.stopCh)
	s.wg.Wait()
	s.running = false

	log.Info("[Sweeper] Stopped")
}

func (s *Sweeper) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.ticker.C:
			if n, err := s.SweepOnce(context.Background()); err != nil {
				log.Errorf("[Sweeper] Sweep failed: %v", err)
			} else if n > 0 {
				log.Infof("[Sweeper] Republished %d stale event(s)", n)
			}
		}
	}
}

// SweepOnce republishes one batch of stale rows and returns how many.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now()

	var rows []models.WebhookEvent
	err := s.db.WithContext(ctx).
		Where("status = ? AND claimed_at < ?", models.WebhookStatusProcessing, now.Add(-staleClaimAfter)).
		Or("status = ? AND updated_at < ?", models.WebhookStatusFailedRetryable, now.Add(-retryLagAfter)).
		Order("updated_at ASC").
		Limit(sweepBatchSize).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	republished := 0
	for i := range rows {
		row := &rows[i]
		if _, err := s.publisher.Publish(ctx, queue.Message{
			Body:    []byte(row.PayloadJSON),
			DedupID: row.EventID,
		}); err != nil {
			log.Warnf("[Sweeper] Republish of %s failed: %v", row.EventID, err)
			continue
		}
		// Refresh enqueued_at so the row is not swept again immediately. The
		// claim itself stays untouched; the worker's takeover rules decide.
		if err := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
			Where("event_id = ?", row.EventID).
			Update("enqueued_at", &now).Error; err != nil {
			log.Warnf("[Sweeper] Refresh enqueued_at for %s failed: %v", row.EventID, err)
		}
		republished++
	}
	return republished, nil
}

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eventkasse/eventkasse/app/models"
)

// ErrAwaitTimeout is returned when the bounded result poll hits its ceiling.
var ErrAwaitTimeout = errors.New("webhook: timed out waiting for in-flight result")

// staleClaimAfter is how long a processing claim may sit before a later
// invocation is allowed to take it over. Covers workers that died mid-claim
// without recording a result.
const staleClaimAfter = 10 * time.Minute

// ClaimOutcome describes what happened when a worker tried to take exclusive
// processing rights for an event id.
type ClaimOutcome struct {
	// Acquired means this caller holds the processing claim and must run the
	// handler and record a result.
	Acquired bool
	// InFlight means another invocation currently holds the claim.
	InFlight bool
	// Result carries the stored terminal result when the row already completed.
	Result *models.WebhookResult
	// Attempt is the claim counter after this call.
	Attempt int
}

// Store is the idempotency table protocol. Claim and RecordResult must be
// implemented with database-level atomicity, never read-then-write pairs,
// because the queue legitimately invokes concurrent workers for one event id.
type Store interface {
	RecordPending(ctx context.Context, ev *ParsedEvent, enqueuedAt time.Time) error
	Claim(ctx context.Context, ev *ParsedEvent) (*ClaimOutcome, error)
	RecordResult(ctx context.Context, eventID string, result models.WebhookResult) error
	GetResult(ctx context.Context, eventID string) (*models.WebhookResult, error)
	AwaitResult(ctx context.Context, eventID string, interval, ceiling time.Duration) (*models.WebhookResult, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewStore creates an idempotency store backed by GORM.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// RecordPending creates the event row at ingestion time. A second receipt of
// the same event id only refreshes enqueued_at; it never duplicates the row.
func (s *gormStore) RecordPending(ctx context.Context, ev *ParsedEvent, enqueuedAt time.Time) error {
	row := &models.WebhookEvent{
		EventID:     ev.ID,
		EventType:   ev.Type,
		AccountID:   ev.AccountID,
		ObjectID:    ev.ObjectID,
		PayloadJSON: string(ev.Raw),
		Status:      models.WebhookStatusPending,
		ReceivedAt:  enqueuedAt,
		EnqueuedAt:  &enqueuedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"enqueued_at", "updated_at"}),
	}).Create(row).Error
}

// Claim atomically transitions the row into processing. The exclusivity
// boundary is the conditional UPDATE: only rows in a claimable status move,
// and RowsAffected decides who won.
func (s *gormStore) Claim(ctx context.Context, ev *ParsedEvent) (*ClaimOutcome, error) {
	// Lazily create the row in case ingestion was skipped for this event.
	lazy := &models.WebhookEvent{
		EventID:     ev.ID,
		EventType:   ev.Type,
		AccountID:   ev.AccountID,
		ObjectID:    ev.ObjectID,
		PayloadJSON: string(ev.Raw),
		Status:      models.WebhookStatusPending,
		ReceivedAt:  time.Now(),
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(lazy).Error; err != nil {
		return nil, fmt.Errorf("webhook: ensure event row: %w", err)
	}

	now := time.Now()
	tx := s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where(
			"event_id = ? AND (status IN ? OR (status = ? AND claimed_at < ?))",
			ev.ID,
			[]string{models.WebhookStatusPending, models.WebhookStatusFailedRetryable},
			models.WebhookStatusProcessing,
			now.Add(-staleClaimAfter),
		).
		Updates(map[string]interface{}{
			"status":        models.WebhookStatusProcessing,
			"claimed_at":    &now,
			"attempt_count": gorm.Expr("attempt_count + 1"),
		})
	if tx.Error != nil {
		return nil, fmt.Errorf("webhook: claim event %s: %w", ev.ID, tx.Error)
	}

	var row models.WebhookEvent
	if err := s.db.WithContext(ctx).Where("event_id = ?", ev.ID).First(&row).Error; err != nil {
		return nil, fmt.Errorf("webhook: load event %s after claim: %w", ev.ID, err)
	}

	if tx.RowsAffected > 0 {
		return &ClaimOutcome{Acquired: true, Attempt: row.AttemptCount}, nil
	}

	if row.IsTerminal() {
		result, err := row.Result()
		if err != nil {
			return nil, fmt.Errorf("webhook: decode stored result for %s: %w", ev.ID, err)
		}
		return &ClaimOutcome{Result: result, Attempt: row.AttemptCount}, nil
	}

	// Someone else holds the processing claim right now.
	return &ClaimOutcome{InFlight: true, Attempt: row.AttemptCount}, nil
}

// RecordResult persists the handler outcome and the matching terminal status.
// It is idempotent: once a row left processing, a repeat write is a no-op.
func (s *gormStore) RecordResult(ctx context.Context, eventID string, result models.WebhookResult) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("webhook: encode result for %s: %w", eventID, err)
	}

	status := models.WebhookStatusFailedRetryable
	updates := map[string]interface{}{
		"result_json": string(encoded),
	}
	if result.Success || result.Terminal {
		if result.Success || isAckReason(result.Reason) {
			status = models.WebhookStatusSucceeded
		} else {
			status = models.WebhookStatusFailedTerminal
		}
		now := time.Now()
		updates["completed_at"] = &now
	}
	updates["status"] = status

	return s.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("event_id = ? AND status = ?", eventID, models.WebhookStatusProcessing).
		Updates(updates).Error
}

// GetResult returns the stored terminal result, or nil when none exists yet.
func (s *gormStore) GetResult(ctx context.Context, eventID string) (*models.WebhookResult, error) {
	var row models.WebhookEvent
	err := s.db.WithContext(ctx).Where("event_id = ?", eventID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !row.IsTerminal() {
		return nil, nil
	}
	return row.Result()
}

// AwaitResult polls GetResult at a fixed interval until a result appears or
// the ceiling is reached. The ceiling is a hard bound; callers sit inside a
// request that must not block indefinitely.
func (s *gormStore) AwaitResult(ctx context.Context, eventID string, interval, ceiling time.Duration) (*models.WebhookResult, error) {
	return awaitResult(ctx, s, eventID, interval, ceiling)
}

func awaitResult(ctx context.Context, store Store, eventID string, interval, ceiling time.Duration) (*models.WebhookResult, error) {
	deadline := time.Now().Add(ceiling)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := store.GetResult(ctx, eventID)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrAwaitTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isAckReason(reason string) bool {
	switch reason {
	case models.ReasonDuplicate, models.ReasonAlreadyProcessed:
		return true
	default:
		return false
	}
}

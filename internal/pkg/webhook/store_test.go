package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eventkasse/eventkasse/app/models"
)

// pollStore hands out a result only after a fixed number of GetResult calls.
type pollStore struct {
	Store

	mu        sync.Mutex
	calls     int
	readyAt   int
	result    *models.WebhookResult
	returnErr error
}

func (s *pollStore) GetResult(ctx context.Context, eventID string) (*models.WebhookResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.returnErr != nil {
		return nil, s.returnErr
	}
	if s.readyAt > 0 && s.calls >= s.readyAt {
		return s.result, nil
	}
	return nil, nil
}

func TestAwaitResult_ResultAppears(t *testing.T) {
	t.Parallel()

	store := &pollStore{
		readyAt: 3,
		result:  &models.WebhookResult{Success: true},
	}

	result, err := awaitResult(context.Background(), store, "evt_1", 5*time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.Success {
		t.Fatalf("expected the stored success result, got %+v", result)
	}
	if store.calls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", store.calls)
	}
}

func TestAwaitResult_CeilingHit(t *testing.T) {
	t.Parallel()

	store := &pollStore{} // never produces a result

	start := time.Now()
	_, err := awaitResult(context.Background(), store, "evt_1", 10*time.Millisecond, 60*time.Millisecond)
	if !errors.Is(err, ErrAwaitTimeout) {
		t.Fatalf("expected ErrAwaitTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("poll must respect the ceiling, took %s", elapsed)
	}
}

func TestAwaitResult_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &pollStore{}
	_, err := awaitResult(ctx, store, "evt_1", 10*time.Millisecond, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestAwaitResult_StoreError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("db gone")
	store := &pollStore{returnErr: wantErr}

	_, err := awaitResult(context.Background(), store, "evt_1", 10*time.Millisecond, time.Minute)
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected store error to pass through, got %v", err)
	}
}

func TestIsAckReason(t *testing.T) {
	t.Parallel()

	if !isAckReason(models.ReasonDuplicate) || !isAckReason(models.ReasonAlreadyProcessed) {
		t.Fatalf("duplicate and already_processed must be ack reasons")
	}
	if isAckReason(models.ReasonNotFound) || isAckReason(models.ReasonConflict) || isAckReason("") {
		t.Fatalf("failure reasons must not be ack reasons")
	}
}

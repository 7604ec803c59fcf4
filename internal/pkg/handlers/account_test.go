package handlers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventkasse/eventkasse/app/models"
	"github.com/eventkasse/eventkasse/internal/pkg/webhook"
)

func accountEvent(eventID, accountID string, payoutsEnabled bool) *webhook.ParsedEvent {
	raw := fmt.Sprintf(`{
		"id": %q,
		"type": "account.updated",
		"account": %q,
		"data": { "object": { "id": %q, "payouts_enabled": %v } }
	}`, eventID, accountID, accountID, payoutsEnabled)
	return &webhook.ParsedEvent{ID: eventID, Type: "account.updated", AccountID: accountID, Raw: []byte(raw)}
}

func TestAccountUpdated_EnablesPayouts(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.organizers["acct_1"] = &models.Organizer{ID: 1, ConnectedAccountID: "acct_1", PayoutsEnabled: false}
	h := NewAccountHandlers(repo)

	result := h.AccountUpdated(context.Background(), accountEvent("evt_1", "acct_1", true))

	require.True(t, result.Success)
	assert.True(t, repo.organizers["acct_1"].PayoutsEnabled)
}

func TestAccountUpdated_NoChangeIsAlreadyProcessed(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.organizers["acct_1"] = &models.Organizer{ID: 1, ConnectedAccountID: "acct_1", PayoutsEnabled: true}
	h := NewAccountHandlers(repo)

	result := h.AccountUpdated(context.Background(), accountEvent("evt_1", "acct_1", true))

	assert.True(t, result.Terminal)
	assert.Equal(t, models.ReasonAlreadyProcessed, result.Reason)
}

func TestAccountUpdated_UnknownAccount(t *testing.T) {
	t.Parallel()

	h := NewAccountHandlers(newFakeRepository())
	result := h.AccountUpdated(context.Background(), accountEvent("evt_1", "acct_unknown", true))

	assert.True(t, result.Terminal)
	assert.Equal(t, models.ReasonNotFound, result.Reason)
}

func TestAccountUpdated_MissingAccountID(t *testing.T) {
	t.Parallel()

	h := NewAccountHandlers(newFakeRepository())
	ev := &webhook.ParsedEvent{
		ID:   "evt_1",
		Type: "account.updated",
		Raw:  []byte(`{"id":"evt_1","type":"account.updated","data":{"object":{}}}`),
	}
	result := h.AccountUpdated(context.Background(), ev)

	assert.True(t, result.Terminal)
	assert.Equal(t, models.ReasonConflict, result.Reason)
}

func TestAccountUpdated_FallsBackToEnvelopeAccount(t *testing.T) {
	t.Parallel()

	repo := newFakeRepository()
	repo.organizers["acct_1"] = &models.Organizer{ID: 1, ConnectedAccountID: "acct_1"}
	h := NewAccountHandlers(repo)

	// Object carries no id of its own; the envelope-level account applies.
	ev := &webhook.ParsedEvent{
		ID:        "evt_1",
		Type:      "account.updated",
		AccountID: "acct_1",
		Raw:       []byte(`{"id":"evt_1","type":"account.updated","account":"acct_1","data":{"object":{"payouts_enabled":true}}}`),
	}
	result := h.AccountUpdated(context.Background(), ev)

	require.True(t, result.Success)
	assert.True(t, repo.organizers["acct_1"].PayoutsEnabled)
}

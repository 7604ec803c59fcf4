package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/eventkasse/eventkasse/app/models"
	"github.com/eventkasse/eventkasse/internal/pkg/dispatch"
	"github.com/eventkasse/eventkasse/internal/pkg/webhook"
)

// AccountHandlers syncs connected-account state onto local organizers.
type AccountHandlers struct {
	repo Repository
}

func NewAccountHandlers(repo Repository) *AccountHandlers {
	return &AccountHandlers{repo: repo}
}

func (h *AccountHandlers) RegisterAll(registry *dispatch.Registry) {
	registry.Register(dispatch.EventTypeAccountUpdated, dispatch.HandlerFunc(h.AccountUpdated))
}

type accountObject struct {
	ID             string `json:"id"`
	PayoutsEnabled bool   `json:"payouts_enabled"`
}

// AccountUpdated mirrors the connected account's payout eligibility.
func (h *AccountHandlers) AccountUpdated(ctx context.Context, ev *webhook.ParsedEvent) dispatch.Result {
	_ = ctx
	var envelope struct {
		Data struct {
			Object accountObject `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(ev.Raw, &envelope); err != nil {
		return dispatch.TerminalFailure(models.ReasonConflict, fmt.Errorf("parse account object: %w", err))
	}

	accountID := strings.TrimSpace(envelope.Data.Object.ID)
	if accountID == "" {
		accountID = strings.TrimSpace(ev.AccountID)
	}
	if accountID == "" {
		return dispatch.TerminalFailure(models.ReasonConflict, errors.New("account event has no account id"))
	}

	org, err := h.repo.GetOrganizerByConnectedAccountID(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dispatch.TerminalFailure(models.ReasonNotFound,
				fmt.Errorf("no organizer linked to account %s", accountID))
		}
		return dispatch.RetryableFailure(err)
	}

	if org.PayoutsEnabled == envelope.Data.Object.PayoutsEnabled {
		return dispatch.AlreadyProcessed()
	}
	if err := h.repo.SetPayoutsEnabled(org.ID, envelope.Data.Object.PayoutsEnabled); err != nil {
		return dispatch.RetryableFailure(err)
	}
	return dispatch.OK(map[string]string{"account_id": accountID})
}

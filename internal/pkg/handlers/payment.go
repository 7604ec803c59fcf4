package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/eventkasse/eventkasse/app/models"
	"github.com/eventkasse/eventkasse/internal/pkg/dispatch"
	"github.com/eventkasse/eventkasse/internal/pkg/webhook"
)

// PaymentHandlers reconciles provider payment events with local registrations.
type PaymentHandlers struct {
	repo Repository
}

// NewPaymentHandlers creates payment handlers from an injected repository.
func NewPaymentHandlers(repo Repository) *PaymentHandlers {
	return &PaymentHandlers{repo: repo}
}

// RegisterAll binds every payment-related handler into the registry.
func (h *PaymentHandlers) RegisterAll(registry *dispatch.Registry) {
	registry.Register(dispatch.EventTypePaymentSucceeded, dispatch.HandlerFunc(h.PaymentSucceeded))
	registry.Register(dispatch.EventTypePaymentFailed, dispatch.HandlerFunc(h.PaymentFailed))
	registry.Register(dispatch.EventTypePaymentRefunded, dispatch.HandlerFunc(h.PaymentRefunded))
}

type paymentObject struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Metadata struct {
		RegistrationID string `json:"registration_id"`
	} `json:"metadata"`
	FailureMessage string `json:"failure_message"`
}

func parsePaymentObject(raw []byte) (*paymentObject, error) {
	var envelope struct {
		Data struct {
			Object paymentObject `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("parse payment object: %w", err)
	}
	if strings.TrimSpace(envelope.Data.Object.ID) == "" {
		return nil, errors.New("payment object id is missing")
	}
	return &envelope.Data.Object, nil
}

// PaymentSucceeded marks the referenced registration as paid and records the
// provider payment. Replays collapse on the payment's unique provider id.
func (h *PaymentHandlers) PaymentSucceeded(ctx context.Context, ev *webhook.ParsedEvent) dispatch.Result {
	_ = ctx
	object, err := parsePaymentObject(ev.Raw)
	if err != nil {
		return dispatch.TerminalFailure(models.ReasonConflict, err)
	}
	if strings.TrimSpace(object.Metadata.RegistrationID) == "" {
		return dispatch.TerminalFailure(models.ReasonConflict, errors.New("payment has no registration reference"))
	}

	reg, err := h.repo.GetRegistrationByPublicID(object.Metadata.RegistrationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dispatch.TerminalFailure(models.ReasonNotFound,
				fmt.Errorf("registration %s not found", object.Metadata.RegistrationID))
		}
		return dispatch.RetryableFailure(err)
	}

	created, err := h.repo.CreatePaymentIfNotExists(&models.Payment{
		RegistrationID:    reg.ID,
		ProviderPaymentID: object.ID,
		AmountCents:       object.Amount,
		Currency:          strings.ToUpper(object.Currency),
		Status:            models.PaymentStatusSucceeded,
	})
	if err != nil {
		return dispatch.RetryableFailure(err)
	}
	if !created {
		return dispatch.Duplicate()
	}

	if err := h.repo.MarkRegistrationPaid(reg.ID, time.Now()); err != nil {
		return dispatch.RetryableFailure(err)
	}
	return dispatch.OK(map[string]string{
		"registration_id": object.Metadata.RegistrationID,
		"payment_id":      object.ID,
	})
}

// PaymentFailed records the failed attempt. The registration stays unpaid.
func (h *PaymentHandlers) PaymentFailed(ctx context.Context, ev *webhook.ParsedEvent) dispatch.Result {
	_ = ctx
	object, err := parsePaymentObject(ev.Raw)
	if err != nil {
		return dispatch.TerminalFailure(models.ReasonConflict, err)
	}

	existing, err := h.repo.GetPaymentByProviderID(object.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return dispatch.RetryableFailure(err)
	}
	if existing != nil && existing.Status == models.PaymentStatusFailed {
		return dispatch.Duplicate()
	}

	if existing == nil {
		reg, err := h.repo.GetRegistrationByPublicID(object.Metadata.RegistrationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dispatch.TerminalFailure(models.ReasonNotFound,
					fmt.Errorf("registration %s not found", object.Metadata.RegistrationID))
			}
			return dispatch.RetryableFailure(err)
		}
		if _, err := h.repo.CreatePaymentIfNotExists(&models.Payment{
			RegistrationID:    reg.ID,
			ProviderPaymentID: object.ID,
			AmountCents:       object.Amount,
			Currency:          strings.ToUpper(object.Currency),
			Status:            models.PaymentStatusFailed,
			FailureMessage:    object.FailureMessage,
		}); err != nil {
			return dispatch.RetryableFailure(err)
		}
		return dispatch.OK(map[string]string{"payment_id": object.ID})
	}

	if err := h.repo.UpdatePaymentStatus(object.ID, models.PaymentStatusFailed, object.FailureMessage); err != nil {
		return dispatch.RetryableFailure(err)
	}
	return dispatch.OK(map[string]string{"payment_id": object.ID})
}

// PaymentRefunded reverses a settled payment and reopens the registration.
func (h *PaymentHandlers) PaymentRefunded(ctx context.Context, ev *webhook.ParsedEvent) dispatch.Result {
	_ = ctx
	object, err := parsePaymentObject(ev.Raw)
	if err != nil {
		return dispatch.TerminalFailure(models.ReasonConflict, err)
	}

	payment, err := h.repo.GetPaymentByProviderID(object.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dispatch.TerminalFailure(models.ReasonNotFound,
				fmt.Errorf("payment %s not found", object.ID))
		}
		return dispatch.RetryableFailure(err)
	}
	if payment.Status == models.PaymentStatusRefunded {
		return dispatch.Duplicate()
	}

	if err := h.repo.UpdatePaymentStatus(object.ID, models.PaymentStatusRefunded, ""); err != nil {
		return dispatch.RetryableFailure(err)
	}
	if err := h.repo.MarkRegistrationRefunded(payment.RegistrationID); err != nil {
		return dispatch.RetryableFailure(err)
	}
	return dispatch.OK(map[string]string{"payment_id": object.ID})
}

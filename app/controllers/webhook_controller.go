package controllers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/eventkasse/eventkasse/internal/pkg/config"
	"github.com/eventkasse/eventkasse/internal/pkg/metrics/counter"
	"github.com/eventkasse/eventkasse/internal/pkg/queue"
	"github.com/eventkasse/eventkasse/internal/pkg/webhook"
)

// WebhookController is the public ingestion endpoint. It authenticates the
// provider, records the event as pending, forwards it to the hosted queue and
// acks immediately. No business logic runs here; processing latency is never
// exposed to the sender.
type WebhookController struct {
	cfg       *config.Config
	store     webhook.Store
	publisher queue.Publisher
}

func NewWebhookController(cfg *config.Config, store webhook.Store, publisher queue.Publisher) *WebhookController {
	return &WebhookController{cfg: cfg, store: store, publisher: publisher}
}

// HandleIngest processes POST /webhooks/:provider.
func (wc *WebhookController) HandleIngest(c *fiber.Ctx) error {
	correlationID := strings.TrimSpace(c.Get("X-Correlation-Id"))
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	rawBody := append([]byte(nil), c.BodyRaw()...)

	signature := strings.TrimSpace(c.Get(webhook.HeaderSignature))
	if signature == "" {
		log.Warnf("[Webhook] %s: delivery without signature header", correlationID)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_signature"})
	}

	if err := webhook.VerifySignature(rawBody, signature, wc.cfg.SigningSecrets, wc.cfg.Tolerance, time.Now()); err != nil {
		// The sender only learns "invalid"; which check failed stays internal.
		log.Warnf("[Webhook] %s: signature rejected: %v", correlationID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	}

	ev, err := webhook.ParseEvent(rawBody)
	if err != nil {
		log.Warnf("[Webhook] %s: unparseable event: %v", correlationID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	}

	// The event id doubles as the queue's deduplication id, so a provider
	// retry collapses into a single queue message.
	messageID, err := wc.publisher.Publish(c.Context(), queue.Message{Body: rawBody, DedupID: ev.ID})
	if err != nil {
		log.Errorf("[Webhook] %s: enqueue of %s failed: %v", correlationID, ev.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "enqueue_failed"})
	}

	if err := wc.store.RecordPending(c.Context(), ev, time.Now()); err != nil {
		log.Errorf("[Webhook] %s: record pending for %s failed: %v", correlationID, ev.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "persist_failed"})
	}

	if err := counter.AddIngested(); err != nil {
		log.Warnf("[Webhook] counter update failed: %v", err)
	}

	log.Infof("[Webhook] %s: accepted %s (%s), queue message %s", correlationID, ev.ID, ev.Type, messageID)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"received":  true,
		"eventId":   ev.ID,
		"eventType": ev.Type,
		"enqueued":  true,
	})
}

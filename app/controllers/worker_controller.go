package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/eventkasse/eventkasse/internal/pkg/config"
	"github.com/eventkasse/eventkasse/internal/pkg/dispatch"
	"github.com/eventkasse/eventkasse/internal/pkg/metrics/counter"
	"github.com/eventkasse/eventkasse/internal/pkg/queue"
	"github.com/eventkasse/eventkasse/internal/pkg/webhook"
)

// WorkerController is the queue-invoked processing endpoint. It is never
// called by the original sender; every request must carry a valid queue
// callback signature. The atomic claim on the webhook event row guarantees at
// most one handler invocation per event id, no matter how often the queue
// delivers.
type WorkerController struct {
	cfg      *config.Config
	store    webhook.Store
	registry *dispatch.Registry
}

func NewWorkerController(cfg *config.Config, store webhook.Store, registry *dispatch.Registry) *WorkerController {
	return &WorkerController{cfg: cfg, store: store, registry: registry}
}

// HandleProcess processes POST /workers/:provider-webhook.
func (wc *WorkerController) HandleProcess(c *fiber.Ctx) error {
	messageID := strings.TrimSpace(c.Get(queue.HeaderMessageID))
	retryCount := strings.TrimSpace(c.Get(queue.HeaderRetryCount))
	rawBody := append([]byte(nil), c.BodyRaw()...)

	// Authenticity and shape failures can never self-heal on retry; they go
	// straight to the dead-letter path.
	signature := strings.TrimSpace(c.Get(queue.HeaderSignature))
	if err := queue.VerifyCallback(wc.cfg.QueueSigningKeys(), wc.cfg.WorkerURL, rawBody, signature, wc.cfg.Tolerance, time.Now()); err != nil {
		log.Warnf("[Worker] message %s: queue signature rejected: %v", messageID, err)
		return wc.deadLetter(c, fiber.StatusUnauthorized, "invalid_queue_signature")
	}

	ev, err := webhook.ParseEvent(rawBody)
	if err != nil {
		log.Warnf("[Worker] message %s: malformed event payload: %v", messageID, err)
		return wc.deadLetter(c, fiber.StatusBadRequest, "invalid_payload")
	}

	claim, err := wc.store.Claim(c.Context(), ev)
	if err != nil {
		log.Errorf("[Worker] message %s: claim for %s failed: %v", messageID, ev.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "claim_failed"})
	}

	if claim.Result != nil {
		// Already completed by an earlier delivery: idempotent no-op.
		log.Infof("[Worker] message %s: %s already terminal, acking (attempt %d, retry %s)", messageID, ev.ID, claim.Attempt, retryCount)
		return c.SendStatus(dispatch.StatusAck)
	}

	if claim.InFlight {
		// Another invocation holds the claim. Wait a bounded moment for its
		// result; past the ceiling we hand the retry back to the queue.
		result, err := wc.store.AwaitResult(c.Context(), ev.ID, wc.cfg.PollInterval, wc.cfg.PollCeiling)
		if err != nil {
			if errors.Is(err, webhook.ErrAwaitTimeout) {
				log.Infof("[Worker] message %s: %s still in flight after %s, returning conflict", messageID, ev.ID, wc.cfg.PollCeiling)
				return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "in_flight"})
			}
			log.Errorf("[Worker] message %s: await result for %s failed: %v", messageID, ev.ID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "await_failed"})
		}
		_ = result
		return c.SendStatus(dispatch.StatusAck)
	}

	result := wc.registry.Dispatch(c.Context(), ev)
	if err := wc.store.RecordResult(c.Context(), ev.ID, result.Stored()); err != nil {
		// Leave the row claimed; the stale-claim takeover lets a later
		// delivery retry once the claim ages out.
		log.Errorf("[Worker] message %s: record result for %s failed: %v", messageID, ev.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "persist_failed"})
	}

	response := dispatch.Classify(result)
	wc.count(response)
	log.Infof("[Worker] message %s: %s (%s) -> %d (attempt %d)", messageID, ev.ID, ev.Type, response.Status, claim.Attempt)

	if response.NoRetry {
		c.Set(queue.HeaderNoRetry, "true")
	}
	if response.Status == dispatch.StatusAck {
		return c.SendStatus(dispatch.StatusAck)
	}
	return c.Status(response.Status).JSON(response.Body)
}

func (wc *WorkerController) deadLetter(c *fiber.Ctx, status int, reason string) error {
	if err := counter.AddDeadLettered(); err != nil {
		log.Warnf("[Worker] counter update failed: %v", err)
	}
	c.Set(queue.HeaderNoRetry, "true")
	return c.Status(status).JSON(fiber.Map{"error": reason})
}

func (wc *WorkerController) count(response dispatch.Response) {
	var err error
	switch {
	case response.Status == dispatch.StatusAck:
		err = counter.AddProcessed()
	case response.NoRetry:
		err = counter.AddDeadLettered()
	default:
		err = counter.AddRetried()
	}
	if err != nil {
		log.Warnf("[Worker] counter update failed: %v", err)
	}
}

package dispatch

import (
	"github.com/eventkasse/eventkasse/app/models"
)

// Result is the structured outcome every handler returns. The pipeline never
// classifies failures by inspecting error types; handlers say explicitly
// whether retrying can help.
type Result struct {
	Success   bool
	Terminal  bool
	Retryable bool
	Reason    string
	Err       error
	Meta      map[string]string
}

// OK is a successful handler outcome.
func OK(meta map[string]string) Result {
	return Result{Success: true, Terminal: true, Meta: meta}
}

// Duplicate marks an event whose side effect already happened. Terminal, but
// a delivery success: the queue must ack, not retry or dead-letter.
func Duplicate() Result {
	return Result{Terminal: true, Reason: models.ReasonDuplicate}
}

// AlreadyProcessed marks a replayed event whose row already completed.
func AlreadyProcessed() Result {
	return Result{Terminal: true, Reason: models.ReasonAlreadyProcessed}
}

// TerminalFailure marks a failure retrying cannot fix (business-rule
// conflict, missing referenced resource). Routed to the dead-letter queue.
func TerminalFailure(reason string, err error) Result {
	return Result{Terminal: true, Reason: reason, Err: err}
}

// RetryableFailure marks a transient failure; the queue's backoff applies.
func RetryableFailure(err error) Result {
	return Result{Retryable: true, Err: err}
}

// UnhandledType is the outcome for event types without a registered handler.
// The event is acked and the row marked processed, with no side effects.
func UnhandledType(eventType string) Result {
	return Result{
		Success:  true,
		Terminal: true,
		Reason:   models.ReasonUnhandledType,
		Meta:     map[string]string{"event_type": eventType},
	}
}

// Stored converts the handler outcome into the persisted result payload.
func (r Result) Stored() models.WebhookResult {
	stored := models.WebhookResult{
		Success:  r.Success,
		Terminal: r.Terminal,
		Reason:   r.Reason,
		Meta:     r.Meta,
	}
	if r.Err != nil {
		stored.Error = r.Err.Error()
	}
	return stored
}

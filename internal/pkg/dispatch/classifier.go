package dispatch

import (
	"github.com/eventkasse/eventkasse/app/models"
)

// Response codes understood by the hosted queue. StatusDeadLetter is the
// distinguished non-retryable status; together with the no-retry marker
// header it routes the delivery to the dead-letter queue.
const (
	StatusAck        = 204
	StatusDeadLetter = 489
	StatusRetry      = 500
)

// Response is the transport-level signal returned to the queue.
type Response struct {
	Status  int
	NoRetry bool
	Body    map[string]interface{}
}

// Classify maps a handler result onto the queue response. Duplicates are
// acked rather than dead-lettered so replay noise never pollutes the DLQ,
// while genuine unexplained terminal failures still surface for operators.
func Classify(result Result) Response {
	switch {
	case result.Success:
		return Response{Status: StatusAck}
	case result.Terminal && isAckReason(result.Reason):
		return Response{Status: StatusAck}
	case result.Terminal:
		body := map[string]interface{}{"error": "terminal_failure"}
		if result.Reason != "" {
			body["reason"] = result.Reason
		}
		return Response{Status: StatusDeadLetter, NoRetry: true, Body: body}
	default:
		// Unknown or transient: fail open toward retry.
		return Response{Status: StatusRetry, Body: map[string]interface{}{"error": "retryable_failure"}}
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

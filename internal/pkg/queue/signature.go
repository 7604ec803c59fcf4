package queue

import (
	"time"

	"github.com/eventkasse/eventkasse/internal/pkg/webhook"
)

// Callback signing binds the signature to both the request body and the exact
// worker URL so a signed payload cannot be replayed against another endpoint.
// The scheme is the same t=/v1= HMAC-SHA256 format the provider uses, keyed
// with the queue's own key material.

// SignCallback produces the X-Queue-Signature header value for a callback.
func SignCallback(key, workerURL string, body []byte, t time.Time) string {
	return webhook.ComputeSignature(callbackMessage(workerURL, body), key, t)
}

// VerifyCallback checks a queue callback signature against every accepted key
// (current and next, so queue key rotation causes no downtime).
func VerifyCallback(keys []string, workerURL string, body []byte, header string, tolerance time.Duration, now time.Time) error {
	return webhook.VerifySignature(callbackMessage(workerURL, body), header, keys, tolerance, now)
}

func callbackMessage(workerURL string, body []byte) []byte {
	msg := make([]byte, 0, len(workerURL)+1+len(body))
	msg = append(msg, workerURL...)
	msg = append(msg, '\n')
	msg = append(msg, body...)
	return msg
}

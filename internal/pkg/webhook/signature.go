package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HeaderSignature carries the provider's payload signature.
const HeaderSignature = "X-Webhook-Signature"

// Signature verification failures. Callers collapse all of these into one
// 400-class rejection; the distinction exists for internal logging only.
var (
	ErrSignatureMissing   = errors.New("signature header is missing")
	ErrSignatureMalformed = errors.New("signature header is malformed")
	ErrSignatureExpired   = errors.New("signature timestamp outside tolerance")
	ErrSignatureMismatch  = errors.New("signature does not match payload")
)

// VerifySignature validates a provider signature header of the form
// "t=<unix>,v1=<hex>[,v1=<hex>...]" against the raw request body. The HMAC is
// computed over "<timestamp>.<body>". Multiple v1 entries and multiple secrets
// are accepted so secret rotation causes no downtime. A valid HMAC with a
// timestamp outside the tolerance window is still rejected (replay protection).
func VerifySignature(rawBody []byte, header string, secrets []string, tolerance time.Duration, now time.Time) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return ErrSignatureMissing
	}

	timestamp, candidates, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	age := now.Unix() - timestamp
	if age < 0 {
		age = -age
	}
	if time.Duration(age)*time.Second > tolerance {
		return ErrSignatureExpired
	}

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		expected := computeHMAC(rawBody, secret, timestamp)
		for _, candidate := range candidates {
			if hmac.Equal(expected, candidate) {
				return nil
			}
		}
	}
	return ErrSignatureMismatch
}

// ComputeSignature builds a full signature header for a body, secret and
// timestamp. Used by tests and by the queue client when signing callbacks.
func ComputeSignature(rawBody []byte, secret string, t time.Time) string {
	mac := computeHMAC(rawBody, secret, t.Unix())
	return fmt.Sprintf("t=%d,v1=%s", t.Unix(), hex.EncodeToString(mac))
}

func computeHMAC(rawBody []byte, secret string, timestamp int64) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(rawBody)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	var timestamp int64
	var haveTimestamp bool
	var candidates [][]byte

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, ErrSignatureMalformed
		}
		switch key {
		case "t":
			t, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, ErrSignatureMalformed
			}
			timestamp = t
			haveTimestamp = true
		case "v1":
			decoded, err := hex.DecodeString(strings.ToLower(value))
			if err != nil {
				return 0, nil, ErrSignatureMalformed
			}
			candidates = append(candidates, decoded)
		default:
			// Unknown scheme versions are ignored, not rejected.
		}
	}

	if !haveTimestamp || len(candidates) == 0 {
		return 0, nil, ErrSignatureMalformed
	}
	return timestamp, candidates, nil
}

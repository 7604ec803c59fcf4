package webhook

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestVerifySignature_Valid(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"evt_1","type":"payment.succeeded"}`)
	now := time.Now()
	header := ComputeSignature(body, "whsec_a", now)

	if err := VerifySignature(body, header, []string{"whsec_a"}, 5*time.Minute, now); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifySignature_SecretRotation(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	// Signed with the old secret while both secrets are configured.
	header := ComputeSignature(body, "whsec_old", now)
	secrets := []string{"whsec_new", "whsec_old"}

	if err := VerifySignature(body, header, secrets, 5*time.Minute, now); err != nil {
		t.Fatalf("expected rotation secret to validate, got %v", err)
	}
}

func TestVerifySignature_MultipleCandidates(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	good := ComputeSignature(body, "whsec_a", now)
	// A bogus v1 entry next to the good one must not break verification.
	header := fmt.Sprintf("%s,v1=%s", good, "00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff00ff")

	if err := VerifySignature(body, header, []string{"whsec_a"}, 5*time.Minute, now); err != nil {
		t.Fatalf("expected one matching candidate to suffice, got %v", err)
	}
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	t.Parallel()

	now := time.Now()
	header := ComputeSignature([]byte(`{"amount":1500}`), "whsec_a", now)

	err := VerifySignature([]byte(`{"amount":9999}`), header, []string{"whsec_a"}, 5*time.Minute, now)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected mismatch for tampered body, got %v", err)
	}
}

func TestVerifySignature_Replay(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"evt_1"}`)
	signedAt := time.Now().Add(-10 * time.Minute)

	// The HMAC itself is valid; only the timestamp is stale.
	header := ComputeSignature(body, "whsec_a", signedAt)

	err := VerifySignature(body, header, []string{"whsec_a"}, 5*time.Minute, time.Now())
	if !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected expired signature to be rejected, got %v", err)
	}
}

func TestVerifySignature_FutureTimestampOutsideTolerance(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := ComputeSignature(body, "whsec_a", now.Add(10*time.Minute))

	err := VerifySignature(body, header, []string{"whsec_a"}, 5*time.Minute, now)
	if !errors.Is(err, ErrSignatureExpired) {
		t.Fatalf("expected future timestamp to be rejected, got %v", err)
	}
}

func TestVerifySignature_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header string
		want   error
	}{
		{name: "empty", header: "", want: ErrSignatureMissing},
		{name: "no pairs", header: "garbage", want: ErrSignatureMalformed},
		{name: "missing timestamp", header: "v1=abcdef", want: ErrSignatureMalformed},
		{name: "missing candidate", header: "t=1700000000", want: ErrSignatureMalformed},
		{name: "non-numeric timestamp", header: "t=later,v1=abcdef", want: ErrSignatureMalformed},
		{name: "non-hex candidate", header: "t=1700000000,v1=zzzz", want: ErrSignatureMalformed},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := VerifySignature([]byte("{}"), tc.header, []string{"whsec_a"}, 5*time.Minute, time.Now())
			if !errors.Is(err, tc.want) {
				t.Fatalf("header %q: expected %v, got %v", tc.header, tc.want, err)
			}
		})
	}
}

func TestVerifySignature_UnknownSchemeIgnored(t *testing.T) {
	t.Parallel()

	body := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := ComputeSignature(body, "whsec_a", now) + ",v0=legacy"

	if err := VerifySignature(body, header, []string{"whsec_a"}, 5*time.Minute, now); err != nil {
		t.Fatalf("unknown scheme entries should be ignored, got %v", err)
	}
}

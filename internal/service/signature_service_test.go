package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "whsec-test"
	payload := svc.BuildCanonicalString(1708092000, "evt-1", `{"event_type":"PAYOUT_PAID"}`)

	signature := svc.Sign(secretKey, payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature, "signature should be 64-char lowercase hex (SHA-256)")
	assert.True(t, svc.Verify(secretKey, payload, signature))
}

func TestHMACSignatureService_VerifyFails(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("correct-key", "payload")

	assert.False(t, svc.Verify("wrong-key", "payload", signature))
	assert.False(t, svc.Verify("correct-key", "tampered", signature))
	assert.False(t, svc.Verify("correct-key", "payload", "deadbeef"))
}

func TestHMACSignatureService_BuildCanonicalString(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, "42|evt-9|{}", svc.BuildCanonicalString(42, "evt-9", "{}"))
}

package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of body keyed by secret
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the HMAC of body. The comparison
// runs in constant time.
func VerifySignature(body, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign([]byte(body), secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// PaymentSignaturePayload is the string signed for checkout callbacks
func PaymentSignaturePayload(gatewayOrderID, paymentID string) string {
	return gatewayOrderID + "|" + paymentID
}

// VerifyPaymentSignature checks a checkout callback signature
func VerifyPaymentSignature(gatewayOrderID, paymentID, signature, secret string) bool {
	if gatewayOrderID == "" || paymentID == "" {
		return false
	}
	return VerifySignature(PaymentSignaturePayload(gatewayOrderID, paymentID), signature, secret)
}

// VerifyWebhookSignature checks the signature header of a webhook delivery
// against the raw request body.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

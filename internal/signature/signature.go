// Package signature recomputes provider signatures from canonical
// fields and compares them against the signature supplied with the
// event. Verification never mutates anything; callers reject the event
// on mismatch.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
)

// WebhookFields are the canonical fields of the hosted-webhook
// provider's transaction event, in the provider-documented order. The
// concatenation order below is part of the wire protocol: reordering or
// omitting a field invalidates every subsequent payload.
type WebhookFields struct {
	AmountCents          int64
	CreatedAt            string
	Currency             string
	ErrorOccured         bool
	HasParentTransaction bool
	TransactionID        int64
	IntegrationID        int64
	Is3DSecure           bool
	IsAuth               bool
	IsCapture            bool
	IsRefunded           bool
	IsStandalonePayment  bool
	IsVoided             bool
	ProviderOrderID      int64
	Owner                int64
	Pending              bool
	SourcePAN            string
	SourceSubType        string
	SourceType           string
	Success              bool
}

// canonical concatenates the fields with no separators, booleans
// rendered as "true"/"false" and integers in base 10, matching the
// provider's own calculation byte for byte.
func (f WebhookFields) canonical() string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(f.AmountCents, 10))
	b.WriteString(f.CreatedAt)
	b.WriteString(f.Currency)
	b.WriteString(strconv.FormatBool(f.ErrorOccured))
	b.WriteString(strconv.FormatBool(f.HasParentTransaction))
	b.WriteString(strconv.FormatInt(f.TransactionID, 10))
	b.WriteString(strconv.FormatInt(f.IntegrationID, 10))
	b.WriteString(strconv.FormatBool(f.Is3DSecure))
	b.WriteString(strconv.FormatBool(f.IsAuth))
	b.WriteString(strconv.FormatBool(f.IsCapture))
	b.WriteString(strconv.FormatBool(f.IsRefunded))
	b.WriteString(strconv.FormatBool(f.IsStandalonePayment))
	b.WriteString(strconv.FormatBool(f.IsVoided))
	b.WriteString(strconv.FormatInt(f.ProviderOrderID, 10))
	b.WriteString(strconv.FormatInt(f.Owner, 10))
	b.WriteString(strconv.FormatBool(f.Pending))
	b.WriteString(f.SourcePAN)
	b.WriteString(f.SourceSubType)
	b.WriteString(f.SourceType)
	b.WriteString(strconv.FormatBool(f.Success))
	return b.String()
}

// WebhookHMAC computes the hex-encoded HMAC-SHA512 of the canonical
// webhook fields under the shared secret.
func WebhookHMAC(f WebhookFields, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(f.canonical()))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook reports whether supplied matches the HMAC recomputed
// from the canonical fields. Comparison is constant time.
func VerifyWebhook(f WebhookFields, supplied, secret string) bool {
	if supplied == "" || secret == "" {
		return false
	}
	expected := WebhookHMAC(f, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(supplied)))
}

// RedirectSignature computes the hex-encoded SHA-256 digest over
// orderID + paymentStatus + secret, the hosted-redirect provider's
// return-signature scheme.
func RedirectSignature(orderID, paymentStatus, secret string) string {
	sum := sha256.Sum256([]byte(orderID + paymentStatus + secret))
	return hex.EncodeToString(sum[:])
}

// VerifyRedirect reports whether supplied matches the recomputed
// redirect signature. Comparison is constant time.
func VerifyRedirect(orderID, paymentStatus, supplied, secret string) bool {
	if supplied == "" || secret == "" {
		return false
	}
	expected := RedirectSignature(orderID, paymentStatus, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(supplied)))
}

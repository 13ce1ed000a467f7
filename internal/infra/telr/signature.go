package telr

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"
)

// webhookFields is the order Telr hashes the notification fields in.
var webhookFields = []string{
	"tran_store", "tran_type", "tran_class", "tran_test", "tran_ref",
	"tran_prevref", "tran_firstref", "tran_order", "tran_currency",
	"tran_amount", "tran_cartid", "tran_desc", "tran_status",
	"tran_authcode", "tran_authmessage",
}

// Sign computes tran_check for a webhook form.
func Sign(secret string, form url.Values) string {
	parts := make([]string, 0, len(webhookFields)+1)
	parts = append(parts, secret)
	for _, f := range webhookFields {
		parts = append(parts, strings.TrimSpace(form.Get(f)))
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return hex.EncodeToString(sum[:])
}

func VerifySignature(secret string, form url.Values) bool {
	provided := strings.ToLower(strings.TrimSpace(form.Get("tran_check")))
	if provided == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(Sign(secret, form)), []byte(provided)) == 1
}

// WebhookOrderRef is the gateway order reference a notification refers to.
func WebhookOrderRef(form url.Values) string {
	return strings.TrimSpace(form.Get("tran_order"))
}

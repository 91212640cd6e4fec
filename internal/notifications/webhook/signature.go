package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the payload signature on generic webhooks:
//
//	X-CINotify-Signature: t=<unix>,v1=<hmac>[,v1_old=<hmac>]
//
// The signed content is "<unix>.<payload>" under HMAC-SHA256.
const SignatureHeader = "X-CINotify-Signature"

// Signer signs payloads with a current secret and, during rotation, a
// previous secret until it expires.
type Signer struct {
	Secret            string
	PreviousSecret    string
	PreviousExpiresAt time.Time
}

// Enabled reports whether a secret is configured.
func (s Signer) Enabled() bool { return s.Secret != "" }

// Sign returns the header value for payload at now.
func (s Signer) Sign(payload []byte, now time.Time) (string, error) {
	if s.Secret == "" {
		return "", fmt.Errorf("webhook signature: no signing secret")
	}
	ts := now.Unix()
	content := signedContent(strconv.FormatInt(ts, 10), payload)

	header := fmt.Sprintf("t=%d,v1=%s", ts, computeHMAC(content, s.Secret))
	if s.PreviousSecret != "" && !s.PreviousExpiresAt.IsZero() && !now.After(s.PreviousExpiresAt) {
		header += ",v1_old=" + computeHMAC(content, s.PreviousSecret)
	}
	return header, nil
}

// Verify checks header against payload with any of secrets and rejects
// timestamps older than tolerance. A zero tolerance skips the age check.
func Verify(payload []byte, header string, now time.Time, tolerance time.Duration, secrets ...string) bool {
	parts := parseSignatureHeader(header)
	if parts.timestamp == "" || parts.v1 == "" {
		return false
	}
	if tolerance > 0 {
		ts, err := strconv.ParseInt(parts.timestamp, 10, 64)
		if err != nil || now.Sub(time.Unix(ts, 0)) > tolerance {
			return false
		}
	}

	content := signedContent(parts.timestamp, payload)
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		expected := []byte(computeHMAC(content, secret))
		if hmac.Equal([]byte(parts.v1), expected) {
			return true
		}
		if parts.v1Old != "" && hmac.Equal([]byte(parts.v1Old), expected) {
			return true
		}
	}
	return false
}

type signatureParts struct {
	timestamp string
	v1        string
	v1Old     string
}

func parseSignatureHeader(header string) signatureParts {
	var parts signatureParts
	for _, segment := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "t":
			parts.timestamp = value
		case "v1":
			parts.v1 = value
		case "v1_old":
			parts.v1Old = value
		}
	}
	return parts
}

func signedContent(ts string, payload []byte) string {
	return ts + "." + string(payload)
}

func computeHMAC(content, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// apiKeyBytes is the entropy of generated static keys.
const apiKeyBytes = 32

// Claims is the payload of a signed credential.
type Claims struct {
	Organization string   `json:"org"`
	UserID       string   `json:"userId,omitempty"`
	Permissions  []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// subject prefers the registered subject and falls back to userId.
func (c *Claims) subject() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// TokenRequest describes a signed credential to mint.
type TokenRequest struct {
	Organization string
	UserID       string
	Permissions  []string
	TTL          time.Duration
	Issuer       string
	Now          time.Time
}

// GenerateToken signs an HS256 credential with secret.
func GenerateToken(secret []byte, req TokenRequest) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("signing secret is empty")
	}
	if req.Organization == "" || req.UserID == "" {
		return "", fmt.Errorf("organization and user are required")
	}
	perms := req.Permissions
	if perms == nil {
		perms = []string{"notify"}
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	claims := Claims{
		Organization: req.Organization,
		Permissions:  dedupePermissions(perms),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  req.UserID,
			Issuer:   req.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if req.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(req.TTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// GeneratedKey is a fresh static key and its API_KEYS table entry.
type GeneratedKey struct {
	Organization string
	Key          string
	EnvEntry     string
}

// GenerateAPIKey creates a random static key for org. With hash set the
// table entry carries a bcrypt hash instead of the plaintext key.
func GenerateAPIKey(org string, hash bool) (*GeneratedKey, error) {
	if org == "" {
		return nil, fmt.Errorf("organization is required")
	}
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	key := hex.EncodeToString(buf)
	stored := key
	if hash {
		h, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing key: %w", err)
		}
		stored = string(h)
	}
	return &GeneratedKey{
		Organization: org,
		Key:          key,
		EnvEntry:     org + ":" + stored,
	}, nil
}

func dedupePermissions(perms []string) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

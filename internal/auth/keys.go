package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cinotify/internal/types"
)

// bcryptPrefixes identify static keys stored as bcrypt hashes instead of
// plaintext.
var bcryptPrefixes = []string{"$2a$", "$2b$", "$2y$"}

type staticKey struct {
	org    string
	secret string
	hashed bool
}

// KeyTable is the static credential table: organization -> key.
// An organization may appear more than once to allow key rotation.
type KeyTable struct {
	keys []staticKey
}

// ParseAPIKeys parses the "ORG:KEY,ORG2:KEY2" format. Whitespace around
// entries is ignored. Entries without an organization or key are rejected.
func ParseAPIKeys(raw string) (*KeyTable, error) {
	table := &KeyTable{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		org, key, ok := strings.Cut(entry, ":")
		org, key = strings.TrimSpace(org), strings.TrimSpace(key)
		if !ok || org == "" || key == "" {
			return nil, fmt.Errorf("invalid API_KEYS entry %q: want ORG:KEY", redactEntry(entry))
		}
		table.keys = append(table.keys, staticKey{org: org, secret: key, hashed: isBcrypt(key)})
	}
	return table, nil
}

// Len returns the number of configured keys.
func (t *KeyTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Organizations lists the distinct organizations that hold a key.
func (t *KeyTable) Organizations() []string {
	if t == nil {
		return nil
	}
	seen := make(map[string]bool, len(t.keys))
	var out []string
	for _, k := range t.keys {
		if !seen[k.org] {
			seen[k.org] = true
			out = append(out, k.org)
		}
	}
	return out
}

// Lookup returns the organization owning token. Every plaintext entry is
// compared so the time taken does not reveal which entry matched.
func (t *KeyTable) Lookup(token string) (string, bool) {
	if t == nil || token == "" {
		return "", false
	}
	match := ""
	for _, k := range t.keys {
		if k.hashed {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(k.secret), []byte(token)) == 1 && match == "" {
			match = k.org
		}
	}
	if match != "" {
		return match, true
	}
	for _, k := range t.keys {
		if k.hashed && bcrypt.CompareHashAndPassword([]byte(k.secret), []byte(token)) == nil {
			return k.org, true
		}
	}
	return "", false
}

// StaticIdentity builds the Identity granted to a static key holder.
func StaticIdentity(org string) *types.Identity {
	return &types.Identity{
		OrganizationID: org,
		UserID:         "apikey-" + org,
		Permissions:    []string{types.PermissionNotify},
		Kind:           types.CredentialStatic,
	}
}

func isBcrypt(s string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// redactEntry keeps only the organization part of a malformed entry.
func redactEntry(entry string) string {
	if org, _, ok := strings.Cut(entry, ":"); ok {
		return org + ":***"
	}
	return "***"
}

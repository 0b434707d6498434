package ratelimit

import (
	"encoding/base64"
	"errors"
	"net"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Key composes a limiter key following the purpose:scope1:scope2 convention,
// e.g. Key("admin_reports", tenantID, userID).
func Key(purpose string, scopes ...string) string {
	parts := append([]string{purpose}, scopes...)
	return strings.Join(parts, ":")
}

// IPHasher turns client addresses into stable opaque scopes. Raw IPs are
// never used as keys or written to logs; the hash is keyed so the mapping
// cannot be rebuilt from the store alone.
type IPHasher struct {
	key []byte
}

// NewIPHasher derives a 32-byte MAC key from the configured secret.
func NewIPHasher(secret string) (*IPHasher, error) {
	if secret == "" {
		return nil, errors.New("ratelimit: ip hash secret required")
	}
	key := blake2b.Sum256([]byte(secret))
	return &IPHasher{key: key[:]}, nil
}

// Hash returns an opaque scope for the remote address. Host:port values are
// reduced to the host first so one client does not get a fresh budget per
// ephemeral port.
func (h *IPHasher) Hash(remoteAddr string) string {
	host := remoteAddr
	if parsed, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = parsed
	}
	mac, err := blake2b.New(16, h.key)
	if err != nil {
		// Only reachable with an invalid key size, which the constructor
		// rules out.
		panic(err)
	}
	mac.Write([]byte(host))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

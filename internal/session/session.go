package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/securecookie"
)

// Credentials are produced by the interactive SSO login flow and consumed by
// the booking client. The cookie map is opaque to this package.
type Credentials struct {
	Cookies  map[string]string `json:"cookies"`
	IssuedAt time.Time         `json:"issued_at"`
}

// DefaultMaxAge is how long a cookie set is trusted after issuance. A set
// older than this is treated as invalid even if the upstream would still
// accept it.
const DefaultMaxAge = 8 * time.Hour

var ErrNotFound = errors.New("session: not found")

// IsFresh is a pure time comparison; it says nothing about whether the
// upstream has revoked the cookies server-side (see campusrec Probe).
func (c Credentials) IsFresh(now time.Time, maxAge time.Duration) bool {
	if c.IssuedAt.IsZero() {
		return false
	}
	return now.Sub(c.IssuedAt) <= maxAge
}

// ParseExport decodes a plain JSON cookie dump written by the external login
// step so it can be persisted through the Store. A missing issued_at is
// stamped with now.
func ParseExport(b []byte, now time.Time) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(b, &creds); err != nil {
		return Credentials{}, fmt.Errorf("session: parse export: %w", err)
	}
	if len(creds.Cookies) == 0 {
		return Credentials{}, errors.New("session: export contains no cookies")
	}
	if creds.IssuedAt.IsZero() {
		creds.IssuedAt = now
	}
	return creds, nil
}

const storeName = "courtsched_session"

// Store persists credentials to a single file, encoded with securecookie
// (HMAC + AES) so the live login tokens are not readable at rest.
type Store struct {
	path  string
	codec *securecookie.SecureCookie
}

func NewStore(path string, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	// a session file holds a whole cookie jar, not a browser cookie
	sc.MaxLength(0)
	return &Store{path: path, codec: sc}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load() (Credentials, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	var creds Credentials
	if err := s.codec.Decode(storeName, string(b), &creds); err != nil {
		return Credentials{}, fmt.Errorf("session: decode %s: %w", s.path, err)
	}
	return creds, nil
}

func (s *Store) Save(creds Credentials) error {
	encoded, err := s.codec.Encode(storeName, creds)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("session: write %s: %w", s.path, err)
	}
	return nil
}

// ModifiedSince reports whether the backing file changed after t. Used by
// the scheduler loop to pick up a re-login done by the external flow without
// waiting for the next booking.
func (s *Store) ModifiedSince(t time.Time) bool {
	fi, err := os.Stat(s.path)
	if err != nil {
		return false
	}
	return fi.ModTime().After(t)
}

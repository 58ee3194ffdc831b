package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidToken = errors.New("invalid media token")
	ErrTokenExpired = errors.New("media token expired")
)

// MediaGrant is the payload carried by a signed media token.
type MediaGrant struct {
	CourseID  string
	Section   int
	MediaRef  string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates expiring links to section media.
type SignedURLSigner struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret, TTL and link prefix.
func NewSignedURLSigner(secret string, ttl time.Duration, baseURL string) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// Generate returns a link granting temporary access to one section's media.
func (s *SignedURLSigner) Generate(courseID string, section int, mediaRef string) (string, time.Time, error) {
	if courseID == "" || mediaRef == "" || section < 0 {
		return "", time.Time{}, fmt.Errorf("courseID, section and mediaRef required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	parts := []string{
		courseID,
		strconv.Itoa(section),
		strconv.FormatInt(expiresAt.Unix(), 10),
		base64.RawURLEncoding.EncodeToString([]byte(mediaRef)),
	}
	token := strings.Join(append(parts, s.sign(parts)), ".")
	return s.baseURL + "/" + token, expiresAt, nil
}

// Parse validates a token and returns the embedded grant.
func (s *SignedURLSigner) Parse(token string) (MediaGrant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 5 {
		return MediaGrant{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(s.sign(parts[:4])), []byte(parts[4])) {
		return MediaGrant{}, ErrInvalidToken
	}
	section, err := strconv.Atoi(parts[1])
	if err != nil {
		return MediaGrant{}, fmt.Errorf("%w: section", ErrInvalidToken)
	}
	expUnix, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return MediaGrant{}, fmt.Errorf("%w: timestamp", ErrInvalidToken)
	}
	ref, err := base64.RawURLEncoding.DecodeString(parts[3])
	if err != nil {
		return MediaGrant{}, fmt.Errorf("%w: media ref", ErrInvalidToken)
	}
	grant := MediaGrant{
		CourseID:  parts[0],
		Section:   section,
		MediaRef:  string(ref),
		ExpiresAt: time.Unix(expUnix, 0),
	}
	if s.now().After(grant.ExpiresAt) {
		return MediaGrant{}, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) sign(parts []string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Package auth holds the user-channel credential triple and Polymarket L2 request signing.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Header names for L2 authenticated CLOB requests.
const (
	HeaderAddress    = "POLY_ADDRESS"
	HeaderSignature  = "POLY_SIGNATURE"
	HeaderTimestamp  = "POLY_TIMESTAMP"
	HeaderAPIKey     = "POLY_API_KEY"
	HeaderPassphrase = "POLY_PASSPHRASE"
)

var (
	ErrMissingKey        = errors.New("api key is required")
	ErrMissingSecret     = errors.New("api secret is required")
	ErrMissingPassphrase = errors.New("api passphrase is required")
)

// Credentials is the (key, secret, passphrase) triple issued by the CLOB.
// It is supplied by the caller and never read from the environment here.
type Credentials struct {
	Key        string
	Secret     string // base64url encoded
	Passphrase string
}

// Validate checks that all three parts are present.
func (c Credentials) Validate() error {
	if c.Key == "" {
		return ErrMissingKey
	}
	if c.Secret == "" {
		return ErrMissingSecret
	}
	if c.Passphrase == "" {
		return ErrMissingPassphrase
	}
	return nil
}

// IsZero reports whether no part of the triple is set.
func (c Credentials) IsZero() bool {
	return c.Key == "" && c.Secret == "" && c.Passphrase == ""
}

// Zero drops all three parts.
func (c *Credentials) Zero() {
	c.Key = ""
	c.Secret = ""
	c.Passphrase = ""
}

// Redacted returns the key prefix followed by a mask.
func (c Credentials) Redacted() string {
	if c.Key == "" {
		return "<none>"
	}
	prefix := c.Key
	if len(prefix) > 6 {
		prefix = prefix[:6]
	}
	return prefix + "***"
}

// String never includes the secret or passphrase.
func (c Credentials) String() string {
	return c.Redacted()
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(slog.String("key", c.Redacted()))
}

// L2Headers generates the authentication headers for a CLOB REST request.
// Signature message format: timestamp_s + method + path + body
func (c Credentials) L2Headers(address, method, path string, body []byte) (map[string]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ts := time.Now().Unix()
	sig, err := c.sign(ts, method, path, body)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		HeaderAddress:    address,
		HeaderSignature:  sig,
		HeaderTimestamp:  strconv.FormatInt(ts, 10),
		HeaderAPIKey:     c.Key,
		HeaderPassphrase: c.Passphrase,
	}, nil
}

// sign computes the base64url HMAC-SHA256 signature with the decoded secret.
func (c Credentials) sign(ts int64, method, path string, body []byte) (string, error) {
	secret, err := decodeSecret(c.Secret)
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	msg := strconv.FormatInt(ts, 10) + strings.ToUpper(method) + path
	if len(body) > 0 {
		msg += string(body)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(msg))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// decodeSecret accepts padded and unpadded base64url, falling back to std encoding.
func decodeSecret(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

package session

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// SignVersion10 is the sha1 based Chef authentication protocol
	SignVersion10 = "1.0"
	// SignVersion13 is the sha256 based Chef authentication protocol
	SignVersion13 = "1.3"

	timestampLayout = "2006-01-02T15:04:05Z"
	authChunkSize   = 60
)

var slashRun = regexp.MustCompile(`/+`)

// Signer produces the X-Ops-* headers that authenticate a request
type Signer struct {
	UserID     string
	Key        *rsa.PrivateKey
	Version    string
	APIVersion int
}

// ParsePrivateKey reads an RSA key in PKCS#1 or PKCS#8 PEM form
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("private key is not PEM encoded")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not an RSA key")
	}
	return key, nil
}

// CanonicalPath collapses duplicate slashes and drops a trailing one
func CanonicalPath(path string) string {
	path = slashRun.ReplaceAllString(path, "/")
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Sign sets the authentication headers on req for the given body
func (s *Signer) Sign(req *http.Request, body []byte, now time.Time) error {
	if s.Key == nil {
		return fmt.Errorf("no private key configured for %s", s.UserID)
	}

	ts := now.UTC().Format(timestampLayout)
	path := CanonicalPath(req.URL.Path)

	var (
		sig         []byte
		contentHash string
		err         error
	)

	switch s.Version {
	case SignVersion10, "":
		contentHash = digestSHA1(body)
		canonical := fmt.Sprintf("Method:%s\nHashed Path:%s\nX-Ops-Content-Hash:%s\nX-Ops-Timestamp:%s\nX-Ops-UserId:%s",
			strings.ToUpper(req.Method), digestSHA1([]byte(path)), contentHash, ts, s.UserID)
		// Protocol 1.0 signs the canonical text itself, without a DigestInfo prefix
		sig, err = rsa.SignPKCS1v15(rand.Reader, s.Key, crypto.Hash(0), []byte(canonical))
		req.Header.Set("X-Ops-Sign", "algorithm=sha1;version=1.0")
	case SignVersion13:
		contentHash = digestSHA256(body)
		canonical := fmt.Sprintf("Method:%s\nPath:%s\nX-Ops-Content-Hash:%s\nX-Ops-Sign:version=1.3\nX-Ops-Timestamp:%s\nX-Ops-UserId:%s\nX-Ops-Server-API-Version:%d",
			strings.ToUpper(req.Method), path, contentHash, ts, s.UserID, s.APIVersion)
		sum := sha256.Sum256([]byte(canonical))
		sig, err = rsa.SignPKCS1v15(rand.Reader, s.Key, crypto.SHA256, sum[:])
		req.Header.Set("X-Ops-Sign", "algorithm=sha256;version=1.3")
	default:
		return fmt.Errorf("unsupported signing version %q", s.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to sign request: %w", err)
	}

	req.Header.Set("X-Ops-Userid", s.UserID)
	req.Header.Set("X-Ops-Timestamp", ts)
	req.Header.Set("X-Ops-Content-Hash", contentHash)
	req.Header.Set("X-Ops-Server-API-Version", strconv.Itoa(s.APIVersion))

	encoded := base64.StdEncoding.EncodeToString(sig)
	for i, chunk := range chunk(encoded, authChunkSize) {
		req.Header.Set(fmt.Sprintf("X-Ops-Authorization-%d", i+1), chunk)
	}
	return nil
}

func digestSHA1(b []byte) string {
	sum := sha1.Sum(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func digestSHA256(b []byte) string {
	sum := sha256.Sum256(b)
	return base64.StdEncoding.EncodeToString(sum[:])
}

func chunk(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

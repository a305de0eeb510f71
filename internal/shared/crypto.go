package shared

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var ErrBadSignature = errors.New("bad event signature")

func GenKeypair() (pubB64 string, privB64 string, err error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(pub), base64.StdEncoding.EncodeToString(priv), nil
}

func DecodePubKey(b64 string) (ed25519.PublicKey, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, errors.New("invalid public key size")
	}
	return ed25519.PublicKey(b), nil
}

func DecodePrivKey(b64 string) (ed25519.PrivateKey, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, err
	}
	if len(b) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid private key size")
	}
	return ed25519.PrivateKey(b), nil
}

func EncodePubKey(priv ed25519.PrivateKey) string {
	return base64.StdEncoding.EncodeToString(priv.Public().(ed25519.PublicKey))
}

// LoadOrCreateKey reads a base64 private key from path, generating and
// writing a new one when the file does not exist.
func LoadOrCreateKey(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		return DecodePrivKey(strings.TrimSpace(string(b)))
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	_, privB64, err := GenKeypair()
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(privB64), 0600); err != nil {
		return nil, err
	}
	return DecodePrivKey(privB64)
}

func BodySHA256(body []byte) string {
	h := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(h[:])
}

// signature covers: timestamp + bodySha
func Sign(priv ed25519.PrivateKey, timestamp, bodySha string) string {
	msg := []byte(timestamp + "\n" + bodySha)
	sig := ed25519.Sign(priv, msg)
	return base64.StdEncoding.EncodeToString(sig)
}

func Verify(pub ed25519.PublicKey, signatureB64, timestamp, bodySha string) bool {
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}
	msg := []byte(timestamp + "\n" + bodySha)
	return ed25519.Verify(pub, msg, sig)
}

// EventSigner returns a function producing the signature headers for an
// event body.
func EventSigner(priv ed25519.PrivateKey) func(body []byte) (map[string]string, error) {
	return func(body []byte) (map[string]string, error) {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		bodySha := BodySHA256(body)
		return map[string]string{
			HeaderEventTimestamp: ts,
			HeaderEventBodySHA:   bodySha,
			HeaderEventSignature: Sign(priv, ts, bodySha),
		}, nil
	}
}

// VerifyEvent checks the signature headers of a delivery against body. A
// non-zero window rejects timestamps further than window from now.
func VerifyEvent(pub ed25519.PublicKey, h http.Header, body []byte, window time.Duration) error {
	ts := h.Get(HeaderEventTimestamp)
	sig := h.Get(HeaderEventSignature)
	bodySha := h.Get(HeaderEventBodySHA)
	if ts == "" || sig == "" || bodySha == "" {
		return fmt.Errorf("%w: missing headers", ErrBadSignature)
	}
	if bodySha != BodySHA256(body) {
		return fmt.Errorf("%w: body digest mismatch", ErrBadSignature)
	}
	if window > 0 {
		t, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad timestamp %q", ErrBadSignature, ts)
		}
		skew := time.Since(time.Unix(t, 0))
		if skew < -window || skew > window {
			return fmt.Errorf("%w: timestamp outside window", ErrBadSignature)
		}
	}
	if !Verify(pub, sig, ts, bodySha) {
		return ErrBadSignature
	}
	return nil
}

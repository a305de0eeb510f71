package shared

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrCreateKeyPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "events.key")

	first, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	second, err := LoadOrCreateKey(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadOrCreateKeyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.key")
	require.NoError(t, os.WriteFile(path, []byte("not-a-key"), 0600))

	_, err := LoadOrCreateKey(path)
	assert.Error(t, err)
}

func signedHeaders(t *testing.T, body []byte) (http.Header, string) {
	t.Helper()
	_, privB64, err := GenKeypair()
	require.NoError(t, err)
	priv, err := DecodePrivKey(privB64)
	require.NoError(t, err)

	hdrs, err := EventSigner(priv)(body)
	require.NoError(t, err)
	h := http.Header{}
	for k, v := range hdrs {
		h.Set(k, v)
	}
	return h, EncodePubKey(priv)
}

func TestVerifyEvent(t *testing.T) {
	body := []byte(`{"Id":"1","Events":[]}`)
	h, pubB64 := signedHeaders(t, body)
	pub, err := DecodePubKey(pubB64)
	require.NoError(t, err)

	require.NoError(t, VerifyEvent(pub, h, body, time.Minute))

	err = VerifyEvent(pub, h, []byte(`{"Id":"2","Events":[]}`), time.Minute)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, otherB64 := signedHeaders(t, body)
	other, err := DecodePubKey(otherB64)
	require.NoError(t, err)
	assert.ErrorIs(t, VerifyEvent(other, h, body, time.Minute), ErrBadSignature)

	assert.ErrorIs(t, VerifyEvent(pub, http.Header{}, body, 0), ErrBadSignature)
}

func TestVerifyEventWindow(t *testing.T) {
	body := []byte(`{}`)
	_, privB64, err := GenKeypair()
	require.NoError(t, err)
	priv, err := DecodePrivKey(privB64)
	require.NoError(t, err)
	pub, err := DecodePubKey(EncodePubKey(priv))
	require.NoError(t, err)

	old := strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)
	sha := BodySHA256(body)
	h := http.Header{}
	h.Set(HeaderEventTimestamp, old)
	h.Set(HeaderEventBodySHA, sha)
	h.Set(HeaderEventSignature, Sign(priv, old, sha))

	assert.ErrorIs(t, VerifyEvent(pub, h, body, time.Minute), ErrBadSignature)
	assert.NoError(t, VerifyEvent(pub, h, body, 0))
}

func TestDecodeKeySizes(t *testing.T) {
	_, err := DecodePubKey("AAAA")
	assert.Error(t, err)
	_, err = DecodePrivKey("AAAA")
	assert.Error(t, err)
	_, err = DecodePubKey("%%%")
	assert.Error(t, err)
}

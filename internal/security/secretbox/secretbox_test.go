package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestSealOpen_RoundTrip(t *testing.T) {
	t.Parallel()
	box, err := New(base64.StdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)

	msg := "ya29.a0AfH6SMB-provider-access-token"
	ct, err := box.Seal(msg)
	require.NoError(t, err)
	require.NotContains(t, ct, msg)

	pt, err := box.Open(ct)
	require.NoError(t, err)
	require.Equal(t, msg, pt)
}

func TestSeal_EmptyStaysEmpty(t *testing.T) {
	t.Parallel()
	box, err := New(hex.EncodeToString(testKey()))
	require.NoError(t, err)

	ct, err := box.Seal("")
	require.NoError(t, err)
	require.Empty(t, ct)
	pt, err := box.Open("")
	require.NoError(t, err)
	require.Empty(t, pt)
}

func TestOpen_DetectsTamper(t *testing.T) {
	t.Parallel()
	box, err := New(base64.RawStdEncoding.EncodeToString(testKey()))
	require.NoError(t, err)

	ct, err := box.Seal("top secret")
	require.NoError(t, err)
	parts := strings.Split(ct, "|")
	require.Len(t, parts, 2)

	raw, err := base64.StdEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	raw[0] ^= 0xff
	tampered := parts[0] + "|" + base64.StdEncoding.EncodeToString(raw)

	_, err = box.Open(tampered)
	require.Error(t, err)

	_, err = box.Open("no-separator")
	require.ErrorIs(t, err, ErrInvalidFormat)
}

func TestNew_RejectsShortKey(t *testing.T) {
	t.Parallel()
	_, err := New(base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, ErrInvalidKey)
}

package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec()
	require.NoError(t, err)
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	cases := []struct {
		name    string
		payload []byte
	}{
		{"notes.txt", []byte(strings.Repeat("hello world", 1000))},
		{"photo.jpg", []byte{0x01, 0xfe, 0x42, 0x99, 0x00, 0xab, 0x17, 0xd3, 0x5c, 0x68}},
		{"empty-ish.bin", []byte{0}},
		{"name with spaces.md", []byte("# readme\n")},
	}

	for _, tc := range cases {
		original := append([]byte(nil), tc.payload...)
		body, compressed := selectCompression(tc.payload, tc.name)

		ciphertext, err := c.Encode(body, tc.name, compressed, int64(len(original)))
		require.NoError(t, err)

		payload, meta, err := c.Decode(ciphertext, tc.name)
		require.NoError(t, err)
		require.Equal(t, original, payload, "round trip for %s", tc.name)
		require.Equal(t, tc.name, meta.Name)
		require.Equal(t, compressed, meta.Compressed)
		require.Equal(t, int64(len(original)), meta.OriginalSize)
	}
}

func TestDecodeMetaWithoutPayload(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	payload := []byte(strings.Repeat("data", 2000))
	body, compressed := selectCompression(payload, "log.txt")
	ciphertext, err := c.Encode(body, "log.txt", compressed, int64(len(payload)))
	require.NoError(t, err)

	meta, err := c.DecodeMeta(ciphertext)
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)), meta.OriginalSize)
	require.Equal(t, "log.txt", meta.Name)
	require.True(t, meta.Compressed)
}

func TestDecodeTamperedCiphertextFails(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	ciphertext, err := c.Encode([]byte("secret"), "a.txt", false, 6)
	require.NoError(t, err)

	tampered := append([]byte(nil), ciphertext...)
	tampered[len(tampered)-1] ^= 0x01

	payload, _, err := c.Decode(tampered, "a.txt")
	require.ErrorIs(t, err, ErrCorruptEnvelope)
	require.Nil(t, payload, "ciphertext must never leak on decode failure")

	_, err = c.DecodeMeta(tampered)
	require.ErrorIs(t, err, ErrCorruptEnvelope)
}

func TestDecodeWrongKeyFails(t *testing.T) {
	t.Parallel()
	c1 := newTestCodec(t)
	c2 := newTestCodec(t)

	ciphertext, err := c1.Encode([]byte("secret"), "a.txt", false, 6)
	require.NoError(t, err)

	_, _, err = c2.Decode(ciphertext, "a.txt")
	require.ErrorIs(t, err, ErrCorruptEnvelope)
}

func TestDecodeLegacyEnvelopeCompressed(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	// A legacy record: bare gzipped payload sealed without a metadata
	// frame. The extension heuristic decides the decompression.
	payload := []byte(strings.Repeat("legacy content ", 200))
	body, compressed := selectCompression(payload, "notes.txt")
	require.True(t, compressed)

	ciphertext, err := c.seal(body)
	require.NoError(t, err)

	got, meta, err := c.Decode(ciphertext, "notes.txt")
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.True(t, meta.Compressed)
	require.Equal(t, int64(len(payload)), meta.OriginalSize)
}

func TestDecodeLegacyEnvelopeRaw(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x10, 0x4a, 0x46, 0x49, 0x46, 0x00}
	ciphertext, err := c.seal(payload)
	require.NoError(t, err)

	// Skip-listed extension: legacy bytes are returned as-is.
	got, meta, err := c.Decode(ciphertext, "photo.jpg")
	require.NoError(t, err)
	require.Equal(t, payload, got)
	require.False(t, meta.Compressed)

	// Legacy records carry no metadata frame for listing.
	_, err = c.DecodeMeta(ciphertext)
	require.Error(t, err)
}

func TestDecodeShortCiphertextFails(t *testing.T) {
	t.Parallel()
	c := newTestCodec(t)

	_, _, err := c.Decode([]byte{0x01, 0x02}, "a.txt")
	require.ErrorIs(t, err, ErrCorruptEnvelope)
}

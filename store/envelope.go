package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Envelope layout, before encryption:
//
//	[4-byte big-endian metadata length][CBOR metadata][payload bytes]
//
// The whole frame is sealed with XChaCha20-Poly1305 under a process-lifetime
// key; the random nonce is prepended to the ciphertext. Nothing about the
// record, including its metadata, is visible at rest.
//
// The key is generated once per process and never persisted. Records written
// by a previous process are therefore permanently unreadable after a restart.
// That is an accepted property of the design, not an oversight: it keeps
// encryption at rest free of any key-management machinery, and the store is
// meant for short-lived transfers anyway.

// Meta describes one stored record, recovered from the envelope itself
// rather than trusted from the filesystem.
type Meta struct {
	OriginalSize int64  `cbor:"size"`
	Compressed   bool   `cbor:"compressed"`
	Name         string `cbor:"name"`
}

// CBOR modes configured once. Deterministic encoding so the same metadata
// always produces identical bytes.
var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("store: cbor encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("store: cbor decoder initialization failed: " + err.Error())
	}
}

// Codec encrypts and decrypts stored envelopes.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec creates a Codec with a fresh random key held only in memory.
func NewCodec() (*Codec, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate store key: %w", err)
	}
	return newCodecWithKey(key)
}

func newCodecWithKey(key []byte) (*Codec, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encode frames payload (already compression-selected) with its metadata and
// seals the result. originalSize is the pre-compression byte length.
func (c *Codec) Encode(payload []byte, name string, compressed bool, originalSize int64) ([]byte, error) {
	doc, err := cborEnc.Marshal(Meta{
		OriginalSize: originalSize,
		Compressed:   compressed,
		Name:         name,
	})
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	if int64(len(doc)) > math.MaxUint32 {
		return nil, fmt.Errorf("metadata document too large: %d bytes", len(doc))
	}

	frame := make([]byte, 0, 4+len(doc)+len(payload))
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(doc)))
	frame = append(frame, prefix[:]...)
	frame = append(frame, doc...)
	frame = append(frame, payload...)

	return c.seal(frame)
}

// Decode reverses Encode. A decryption failure is fatal (ErrCorruptEnvelope);
// ciphertext is never handed back as if it were content. If decryption
// succeeds but the frame does not parse, the plaintext is treated as a
// legacy record written before envelopes carried metadata: the extension
// heuristic on name decides whether it needs decompression.
func (c *Codec) Decode(ciphertext []byte, name string) ([]byte, Meta, error) {
	plain, err := c.open(ciphertext)
	if err != nil {
		return nil, Meta{}, ErrCorruptEnvelope
	}

	meta, payload, ok := parseFrame(plain)
	if !ok {
		return c.decodeLegacy(plain, name)
	}

	if meta.Compressed {
		payload, err = gunzip(payload)
		if err != nil {
			return nil, Meta{}, fmt.Errorf("%w: inflate failed", ErrCorruptEnvelope)
		}
	}
	return payload, meta, nil
}

// DecodeMeta authenticates the ciphertext and recovers only the metadata,
// without inflating the payload. Listing uses this to report original sizes.
func (c *Codec) DecodeMeta(ciphertext []byte) (Meta, error) {
	plain, err := c.open(ciphertext)
	if err != nil {
		return Meta{}, ErrCorruptEnvelope
	}
	meta, _, ok := parseFrame(plain)
	if !ok {
		return Meta{}, fmt.Errorf("%w: no metadata frame", ErrCorruptEnvelope)
	}
	return meta, nil
}

// decodeLegacy handles pre-metadata records: the decrypted bytes are the
// payload itself, possibly gzipped. If the extension suggests the record was
// compressible and the bytes inflate cleanly, the inflated form is returned.
func (c *Codec) decodeLegacy(plain []byte, name string) ([]byte, Meta, error) {
	payload := plain
	compressed := false
	if !shouldSkipCompression(name) {
		if inflated, err := gunzip(plain); err == nil {
			payload = inflated
			compressed = true
		}
	}
	return payload, Meta{
		OriginalSize: int64(len(payload)),
		Compressed:   compressed,
		Name:         name,
	}, nil
}

// parseFrame splits a decrypted envelope into metadata and payload. ok is
// false when the bytes do not carry a well-formed metadata frame.
func parseFrame(plain []byte) (Meta, []byte, bool) {
	if len(plain) < 4 {
		return Meta{}, nil, false
	}
	docLen := binary.BigEndian.Uint32(plain[:4])
	if uint64(docLen) > uint64(len(plain)-4) {
		return Meta{}, nil, false
	}
	var meta Meta
	if err := cborDec.Unmarshal(plain[4:4+docLen], &meta); err != nil {
		return Meta{}, nil, false
	}
	if meta.OriginalSize < 0 {
		return Meta{}, nil, false
	}
	return meta, plain[4+docLen:], true
}

func (c *Codec) seal(plain []byte) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plain)+c.aead.Overhead())
	out = append(out, nonce...)
	return c.aead.Seal(out, nonce, plain, nil), nil
}

func (c *Codec) open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce := ciphertext[:chacha20poly1305.NonceSizeX]
	return c.aead.Open(nil, nonce, ciphertext[chacha20poly1305.NonceSizeX:], nil)
}

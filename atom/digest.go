package atom

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/axiomata/atomstore/errors"
)

// DigestSize is the byte length of a content digest (SHA-256).
const DigestSize = 32

// Digest is the 256-bit content hash identifying an atom's raw bytes.
// At most one live atom exists per digest.
type Digest [DigestSize]byte

// ComputeDigest returns the SHA-256 digest of raw content bytes.
// Pure function, no side effects.
func ComputeDigest(content []byte) Digest {
	return sha256.Sum256(content)
}

// String returns the lowercase hex encoding of the digest.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Bytes returns the digest as a byte slice, suitable for BLOB columns.
func (d Digest) Bytes() []byte {
	b := make([]byte, DigestSize)
	copy(b, d[:])
	return b
}

// IsZero reports whether the digest is the all-zero value.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// ParseDigest decodes a lowercase hex digest string.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, errors.Mark(errors.Wrap(err, "parsing digest"), errors.ErrInvalidArgument)
	}
	if len(b) != DigestSize {
		return d, errors.Mark(errors.Newf("digest must be %d bytes, got %d", DigestSize, len(b)), errors.ErrInvalidArgument)
	}
	copy(d[:], b)
	return d, nil
}

// DigestFromBytes converts a raw 32-byte slice into a Digest.
func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != DigestSize {
		return d, errors.Mark(errors.Newf("digest must be %d bytes, got %d", DigestSize, len(b)), errors.ErrInvalidArgument)
	}
	copy(d[:], b)
	return d, nil
}

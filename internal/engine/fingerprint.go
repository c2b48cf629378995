package engine

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Fingerprint is a 32-byte BLAKE3 digest identifying a batch's cacheable
// identity.
type Fingerprint [32]byte

// batchDomainKey is the BLAKE3 keyed-hashing key for batch fingerprints.
// Domain separation keeps batch fingerprints distinct from any other hashes
// of the same bytes. The value is the ASCII domain name zero-padded to the
// 32 bytes keyed mode requires.
var batchDomainKey = [32]byte{
	's', 'p', 'e', 'c', 'f', 'o', 'r', 'g', 'e', '.', 'e', 'n', 'g', 'i', 'n', 'e',
	'.', 'b', 'a', 't', 'c', 'h', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// FingerprintOperations computes the deterministic fingerprint of an
// operation sequence: a keyed BLAKE3 hash over the length-prefixed operation
// keys and definitions, in order. Two sequences fingerprint equal exactly
// when they contain the same operations with the same definitions in the
// same order.
func FingerprintOperations(operations []Operation) Fingerprint {
	hasher, err := blake3.NewKeyed(batchDomainKey[:])
	if err != nil {
		// NewKeyed fails only on wrong key length, which the fixed-size
		// array rules out.
		panic("engine: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var scratch [4]byte
	writeField := func(data []byte) {
		binary.BigEndian.PutUint32(scratch[:], uint32(len(data)))
		hasher.Write(scratch[:])
		hasher.Write(data)
	}

	binary.BigEndian.PutUint32(scratch[:], uint32(len(operations)))
	hasher.Write(scratch[:])

	for _, op := range operations {
		writeField([]byte(op.Key()))
		writeField(op.Definition)
	}

	var fp Fingerprint
	copy(fp[:], hasher.Sum(nil))
	return fp
}

// String returns the canonical hex encoding of the fingerprint.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// Short returns a truncated hex form for logs.
func (f Fingerprint) Short() string {
	return hex.EncodeToString(f[:6])
}

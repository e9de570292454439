// Package idhash computes deterministic identifiers so that replaying the
// same inputs through the kernel yields identical logs.
package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(config_fingerprint|steps|columns|input_digest)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(configFingerprint string, steps, columns int, inputDigest string) string {
	data := fmt.Sprintf("%s|%d|%d|%s",
		configFingerprint,
		steps,
		columns,
		inputDigest,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// DigestFloats computes a SHA256 digest over the raw bit patterns of a float
// slice. NaN payloads are normalized so every NaN digests identically.
func DigestFloats(values []float64) string {
	h := sha256.New()
	var buf [8]byte
	for _, v := range values {
		bits := math.Float64bits(v)
		if math.IsNaN(v) {
			bits = math.Float64bits(math.NaN())
		}
		binary.LittleEndian.PutUint64(buf[:], bits)
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestBools computes a SHA256 digest over a bool slice.
func DigestBools(values []bool) string {
	h := sha256.New()
	for _, v := range values {
		if v {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

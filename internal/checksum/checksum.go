// Package checksum fingerprints source snapshots so unchanged data can be
// recognized across fetches.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Records returns the digest of records in their CSV encoding.
func Records(records [][]string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// WriteAll only fails on writer errors; bytes.Buffer never returns one.
	_ = w.WriteAll(records)
	return Sum(buf.Bytes())
}

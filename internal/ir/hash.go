package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainRowSet = "formharness/rowset/v1"
	DomainTrace  = "formharness/trace/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RowSetHash computes the aggregate hash of an ordered result set.
// Row order is significant: callers must query with a deterministic
// ORDER BY so that identical table contents hash identically.
func RowSetHash(rows []IRObject) (string, error) {
	arr := make(IRArray, len(rows))
	for i, row := range rows {
		arr[i] = row
	}

	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("RowSetHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainRowSet, canonical), nil
}

// TraceHash computes a short fingerprint of a canonical trace snapshot.
func TraceHash(snapshot IRValue) (string, error) {
	canonical, err := MarshalCanonical(snapshot)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustRowSetHash is like RowSetHash but panics on error.
// Use only in tests or when rows are known to be valid.
func MustRowSetHash(rows []IRObject) string {
	h, err := RowSetHash(rows)
	if err != nil {
		panic(err)
	}
	return h
}

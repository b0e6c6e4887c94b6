// Package ir provides the canonical value representation used by the harness.
//
// Fixture values, database rows and run traces are all converted to IRValue
// before they are compared or hashed. This keeps equality checks independent
// of the source that produced a value (YAML decoder, CUE evaluator, SQL
// driver) and gives byte-stable serialization for row-set hashes and golden
// trace snapshots.
//
// Key design constraints:
//   - NO float types: database floats are rendered as strings before
//     conversion so that hashing is exact
//   - NO null in canonical JSON: NULL columns are dropped from row objects
//   - Object keys are ordered by UTF-16 code units (RFC 8785)
//
// ir imports nothing internal.
package ir

// Package store keeps a local SQLite history of scenario runs.
//
// Each run is one row in runs and one row per case in case_results.
// Runs are ordered by seq (insertion order), never by their timestamps.
//
// # Database Configuration
//
//   - WAL mode: history can be read while a run is being recorded
//   - synchronous=NORMAL
//   - busy_timeout=5000: parallel scenarios share one history file
//   - foreign_keys=ON: case results are deleted with their run
//
// Error lists and trace fingerprints are stored as canonical JSON and
// domain-separated hashes from internal/ir.
package store

package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/formharness/internal/harness"
	"github.com/roach88/formharness/internal/ir"
)

// marshalErrors converts a case's error list to canonical JSON TEXT.
func marshalErrors(errs []string) (string, error) {
	arr := make(ir.IRArray, len(errs))
	for i, e := range errs {
		arr[i] = ir.IRString(e)
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return string(data), nil
}

// unmarshalErrors parses the TEXT written by marshalErrors.
func unmarshalErrors(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	return out, nil
}

// traceHash fingerprints the formatted trace of a run. Two runs of a
// scenario with stable keys have equal hashes exactly when their golden
// traces would be equal.
func traceHash(r *harness.RunResult) (string, error) {
	h, err := ir.TraceHash(ir.IRString(harness.FormatTrace(r)))
	if err != nil {
		return "", fmt.Errorf("trace hash: %w", err)
	}
	return h, nil
}

package store

import (
	"encoding/json"
	"fmt"

	"punchcard/internal/model"
)

// ApplyFields merges a partial document into rec. Field names follow the
// document's JSON keys ("clockedIn", "atLunch", "currentShift", ...); keys
// absent from fields are left untouched.
func ApplyFields(rec *model.UserRecord, fields map[string]any) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	var merged map[string]any
	if err := json.Unmarshal(doc, &merged); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}

	for key, val := range fields {
		// Round-trip the value so typed patches (e.g. *ShiftEntry)
		// merge as plain JSON values.
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("encode field %s: %w", key, err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("decode field %s: %w", key, err)
		}
		merged[key] = generic
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode merged record: %w", err)
	}

	var next model.UserRecord
	if err := json.Unmarshal(out, &next); err != nil {
		return fmt.Errorf("decode merged record: %w", err)
	}
	*rec = next
	return nil
}

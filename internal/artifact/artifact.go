// Package artifact reads and writes the JSON documents that carry exported
// records between the two halves of a migration.
//
// Every artifact is a self-describing envelope: a meta block (schema
// version, kind, run identity, generation time, record count) followed by
// the field-named records. Export commands write artifacts; import commands
// load them with strict validation so a missing or malformed file aborts a
// run before any destination store is touched.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is the current artifact envelope version.
const SchemaVersion = 1

// ErrMalformed indicates an artifact exists but failed schema validation.
var ErrMalformed = errors.New("artifact malformed")

// ErrMissing indicates the artifact file does not exist.
var ErrMissing = errors.New("artifact missing")

// Meta describes an artifact independent of its record type.
type Meta struct {
	SchemaVersion int    `json:"schema_version"`
	Kind          string `json:"kind"`
	RunID         string `json:"run_id"`
	GeneratedAt   string `json:"generated_at"`
	RecordCount   int    `json:"record_count"`
}

type envelope struct {
	Meta    Meta            `json:"meta"`
	Records json.RawMessage `json:"records"`
}

// Write marshals records into an artifact of the given kind and writes it
// atomically (temp file plus rename) so a crashed export never leaves a
// half-written document behind.
func Write[T any](path, kind string, records []T) (Meta, error) {
	meta := Meta{
		SchemaVersion: SchemaVersion,
		Kind:          kind,
		RunID:         uuid.NewString(),
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		RecordCount:   len(records),
	}

	recordsJSON, err := json.MarshalIndent(records, "  ", "  ")
	if err != nil {
		return Meta{}, fmt.Errorf("marshal records: %w", err)
	}
	doc := envelope{Meta: meta, Records: recordsJSON}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Meta{}, fmt.Errorf("marshal artifact: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return Meta{}, fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return Meta{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Meta{}, fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return Meta{}, fmt.Errorf("replace artifact: %w", err)
	}
	return meta, nil
}

// Read loads and validates an artifact of the given kind. Validation
// failures wrap ErrMalformed; a missing file wraps ErrMissing. Both are
// fatal for the calling run, which must not have opened any destination
// store yet.
func Read[T any](path, kind string) ([]T, Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Meta{}, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, Meta{}, fmt.Errorf("read artifact: %w", err)
	}

	var doc envelope
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	if err := validateMeta(doc.Meta, kind); err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	var records []T
	if err := json.Unmarshal(doc.Records, &records); err != nil {
		return nil, Meta{}, fmt.Errorf("%w: %s: decode records: %v", ErrMalformed, path, err)
	}
	if len(records) != doc.Meta.RecordCount {
		return nil, Meta{}, fmt.Errorf("%w: %s: meta declares %d records, found %d",
			ErrMalformed, path, doc.Meta.RecordCount, len(records))
	}
	return records, doc.Meta, nil
}

// ReadMeta loads just the envelope's meta block, without decoding or
// validating records. Useful for status reporting.
func ReadMeta(path string) (Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Meta{}, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return Meta{}, fmt.Errorf("read artifact: %w", err)
	}
	var doc struct {
		Meta Meta `json:"meta"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Meta{}, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	return doc.Meta, nil
}

func validateMeta(meta Meta, kind string) error {
	if meta.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema version %d, expected %d", meta.SchemaVersion, SchemaVersion)
	}
	if meta.Kind != kind {
		return fmt.Errorf("kind %q, expected %q", meta.Kind, kind)
	}
	return nil
}

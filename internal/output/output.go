// Package output serializes extraction results for the CLI.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format string from a flag.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatJSONL, FormatYAML:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// Writer buffers extraction records and serializes them on Flush.
// JSONL records are written eagerly, one line per record; JSON and YAML
// collect everything and emit a single document (a bare object when there
// is exactly one record, an array otherwise).
type Writer struct {
	w      *bufio.Writer
	format Format
	items  []any
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format) *Writer {
	return &Writer{
		w:      bufio.NewWriter(w),
		format: format,
	}
}

// Write records a single result.
func (w *Writer) Write(data any) error {
	if w.format == FormatJSONL {
		line, err := json.Marshal(data)
		if err != nil {
			return err
		}
		if _, err := w.w.Write(line); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
		return w.w.Flush()
	}

	w.items = append(w.items, data)
	return nil
}

// Flush serializes all buffered records.
func (w *Writer) Flush() error {
	if w.format == FormatJSONL {
		return w.w.Flush()
	}

	var doc any = w.items
	if len(w.items) == 1 {
		doc = w.items[0]
	}

	switch w.format {
	case FormatYAML:
		enc := yaml.NewEncoder(w.w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		if _, err := w.w.Write(out); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}

	return w.w.Flush()
}

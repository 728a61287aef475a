// Package logfile decodes combat-log event files.
//
// Two formats are supported:
//
//	JSON Lines (.jsonl, .ndjson): one event object per line
//	YAML (.yaml, .yml): a document with optional fight metadata and an
//	events list
//
// Decoding is strict: unknown fields are rejected so that a misspelled
// payload field does not silently read as zero.
package logfile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/combatlog/internal/event"
)

// Format identifies an event file encoding.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// maxLineSize bounds a single JSON Lines record.
const maxLineSize = 1 << 20

// Fight is optional metadata describing the encounter a file covers.
type Fight struct {
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Entity int64  `json:"entity,omitempty" yaml:"entity,omitempty"`
	Start  int64  `json:"start,omitempty" yaml:"start,omitempty"`
	End    int64  `json:"end,omitempty" yaml:"end,omitempty"`
}

// File is a decoded event file.
type File struct {
	Fight  Fight         `json:"fight" yaml:"fight"`
	Events []event.Event `json:"events" yaml:"events"`
}

// DecodeError reports a malformed record. Line is 1-based; it is 0 when
// the decoder cannot attribute the error to a line.
type DecodeError struct {
	Path string
	Line int
	Err  error
}

func (e *DecodeError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "<input>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", loc, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DetectFormat infers the format from a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown event file extension %q (want .jsonl, .ndjson, .yaml or .yml)", filepath.Ext(path))
	}
}

// ReadFile decodes the file at path, choosing the format by extension.
func ReadFile(path string) (*File, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event file: %w", err)
	}
	defer f.Close()

	file, err := Decode(f, format)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Path = path
		}
		return nil, err
	}
	return file, nil
}

// Decode reads every event from r.
func Decode(r io.Reader, format Format) (*File, error) {
	switch format {
	case FormatJSONL:
		events, err := decodeJSONL(r)
		if err != nil {
			return nil, err
		}
		return &File{Events: events}, nil
	case FormatYAML:
		return decodeYAML(r)
	default:
		return nil, fmt.Errorf("unsupported event file format %q", format)
	}
}

func decodeJSONL(r io.Reader) ([]event.Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	var events []event.Event
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		var ev event.Event
		if err := dec.Decode(&ev); err != nil {
			return nil, &DecodeError{Line: line, Err: err}
		}
		if dec.More() {
			return nil, &DecodeError{Line: line, Err: errors.New("trailing data after event")}
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, &DecodeError{Line: line + 1, Err: err}
	}
	return events, nil
}

func decodeYAML(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, &DecodeError{Line: yamlLine(err), Err: err}
	}
	return &file, nil
}

// yamlLine extracts the first line number from a yaml.v3 error.
func yamlLine(err error) int {
	var te *yaml.TypeError
	msg := err.Error()
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg = te.Errors[0]
	}
	var line int
	if i := strings.Index(msg, "line "); i >= 0 {
		fmt.Sscanf(msg[i:], "line %d", &line)
	}
	return line
}

// WriteJSONL encodes events as JSON Lines.
func WriteJSONL(w io.Writer, events []event.Event) error {
	enc := json.NewEncoder(w)
	for i, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
	}
	return nil
}

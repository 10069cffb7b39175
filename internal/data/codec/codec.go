// Package codec serialises surfaces as tagged records in JSON or YAML.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"apisurface/internal/core/errors"
	"apisurface/internal/core/model"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts json, yaml or yml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", errors.Newf(errors.CodeNotSupported, "unsupported snapshot format %q", s)
}

// FormatForPath picks YAML for .yaml and .yml files and JSON otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Encode writes modules as an ordered array of Module records.
func Encode(w io.Writer, modules []*model.Module, format Format) error {
	recs := make([]record, 0, len(modules))
	for _, m := range modules {
		recs = append(recs, toRecord(m))
	}
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return fmt.Errorf("encode yaml snapshot: %w", err)
		}
		return enc.Close()
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(recs); err != nil {
			return fmt.Errorf("encode json snapshot: %w", err)
		}
		return nil
	}
	return errors.Newf(errors.CodeNotSupported, "unsupported snapshot format %q", format)
}

// Marshal is Encode into a byte slice.
func Marshal(modules []*model.Module, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, modules, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads an array of Module records. Any unknown tag or missing field is
// a CodeMalformedSnapshot error.
func Decode(r io.Reader, format Format) ([]*model.Module, error) {
	var recs []record
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&recs); err != nil {
			return nil, errors.Wrap(err, errors.CodeMalformedSnapshot, "invalid yaml snapshot")
		}
	case FormatJSON, "":
		if err := json.NewDecoder(r).Decode(&recs); err != nil {
			return nil, errors.Wrap(err, errors.CodeMalformedSnapshot, "invalid json snapshot")
		}
	default:
		return nil, errors.Newf(errors.CodeNotSupported, "unsupported snapshot format %q", format)
	}

	modules := make([]*model.Module, 0, len(recs))
	for i, rec := range recs {
		if rec.Class != string(model.KindModule) {
			return nil, malformed(fmt.Sprintf("[%d]", i), "top-level record has class %q, want Module", rec.Class)
		}
		n, err := fromRecord(rec, "")
		if err != nil {
			return nil, err
		}
		modules = append(modules, n.(*model.Module))
	}
	return modules, nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(data []byte, format Format) ([]*model.Module, error) {
	return Decode(bytes.NewReader(data), format)
}

package process

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/ProcSynth/pkg/errors"
)

// Format selects a case file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath infers the encoding from a file extension; anything but
// .json is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadCase reads a case file from disk.
func LoadCase(path string) (*CaseRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeNotFound, "open case file %s", path)
	}
	defer f.Close()
	return DecodeCase(f, FormatFromPath(path))
}

// DecodeCase decodes a case from r. Unknown fields are rejected so typos in
// parameter names surface early.
func DecodeCase(r io.Reader, format Format) (*CaseRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "read case")
	}
	var c CaseRecord
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&c)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&c)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode case")
	}
	return &c, nil
}

// EncodeCase writes c in the given format.
func EncodeCase(w io.Writer, c *CaseRecord, format Format) error {
	var err error
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(c)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(c)
		if err == nil {
			err = enc.Close()
		}
	}
	return errors.Wrap(err, errors.ErrCodeSerialization, "encode case")
}

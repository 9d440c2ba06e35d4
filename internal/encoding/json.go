// Package encoding reads and writes the JSON documents pagewright exchanges
// with operators: content exports and import files.
package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// LoadJSON reads a JSON file and unmarshals it into a T.
// Returns nil, nil if the file does not exist.
func LoadJSON[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	return ParseJSON[T](data)
}

// DecodeJSON reads one JSON document from r. Numbers stay json.Number so
// integers survive the round trip through the content tree.
func DecodeJSON[T any](r io.Reader) (*T, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var result T
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &result, nil
}

// ParseJSON unmarshals JSON data into a T.
func ParseJSON[T any](data []byte) (*T, error) {
	return DecodeJSON[T](bytes.NewReader(data))
}

// SaveJSON writes value as indented JSON. The file is replaced atomically
// and parent directories are created.
func SaveJSON[T any](path string, value T) error {
	data, err := ToJSONIndent(value)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return os.Chmod(path, 0o644)
}

// ToJSONIndent marshals a value to indented JSON with a trailing newline.
func ToJSONIndent[T any](value T) ([]byte, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return append(data, '\n'), nil
}

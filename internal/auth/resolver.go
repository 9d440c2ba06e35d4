package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// Source tells where a secret was found.
type Source string

const (
	SourceConfig    Source = "config"
	SourceEnv       Source = "env"
	SourceFile      Source = "file"
	SourceGenerated Source = "generated"
)

// Secret is a resolved credential and where it came from.
type Secret struct {
	Value  string
	Source Source
	Name   string
}

type secretProvider func() (value, name string, source Source, err error)

// Resolver looks a secret up in several places, first hit wins.
type Resolver struct {
	name      string
	providers []secretProvider
}

// NewResolver returns a resolver for the named secret.
func NewResolver(name string) *Resolver {
	return &Resolver{name: name}
}

// WithValue uses a value already known, typically from configuration.
func (r *Resolver) WithValue(value string) *Resolver {
	r.providers = append(r.providers, func() (string, string, Source, error) {
		return strings.TrimSpace(value), "config", SourceConfig, nil
	})

	return r
}

// WithEnv checks the environment variables in order.
func (r *Resolver) WithEnv(vars ...string) *Resolver {
	for _, v := range vars {
		r.providers = append(r.providers, func() (string, string, Source, error) {
			return strings.TrimSpace(os.Getenv(v)), v, SourceEnv, nil
		})
	}

	return r
}

// WithFile reads the secret from path. A missing file is not an error.
func (r *Resolver) WithFile(path string) *Resolver {
	r.providers = append(r.providers, func() (string, string, Source, error) {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return "", "", SourceFile, nil
		}

		if err != nil {
			return "", "", SourceFile, fmt.Errorf("failed to read %s: %w", path, err)
		}

		return strings.TrimSpace(string(data)), path, SourceFile, nil
	})

	return r
}

// WithGenerated creates a random secret and stores it at path so later runs
// find it through WithFile.
func (r *Resolver) WithGenerated(path string) *Resolver {
	r.providers = append(r.providers, func() (string, string, Source, error) {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return "", "", SourceGenerated, fmt.Errorf("failed to generate secret: %w", err)
		}

		value := hex.EncodeToString(buf)

		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return "", "", SourceGenerated, err
		}

		if err := atomic.WriteFile(path, strings.NewReader(value+"\n")); err != nil {
			return "", "", SourceGenerated, fmt.Errorf("failed to store secret: %w", err)
		}

		if err := os.Chmod(path, 0o600); err != nil {
			return "", "", SourceGenerated, err
		}

		return value, path, SourceGenerated, nil
	})

	return r
}

// Resolve returns the first non-empty secret.
func (r *Resolver) Resolve() (*Secret, error) {
	for _, p := range r.providers {
		value, name, source, err := p()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.name, err)
		}

		if value != "" {
			return &Secret{Value: value, Source: source, Name: name}, nil
		}
	}

	return nil, fmt.Errorf("%s is required", r.name)
}

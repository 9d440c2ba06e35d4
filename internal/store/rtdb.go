package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

const rtdbTimeout = 30 * time.Second

// RTDBConfig selects the database and how requests are authorized.
type RTDBConfig struct {
	// URL is the database root, for example
	// https://project-default-rtdb.firebaseio.com.
	URL             string
	// TokenSource authorizes every request with its bearer token.
	TokenSource     oauth2.TokenSource
	// CredentialsFile is a service account key. Application default
	// credentials are used when neither it nor TokenSource is set.
	CredentialsFile string
	// Transport replaces the HTTP transport. Without a TokenSource the
	// requests it carries are unauthenticated.
	Transport       http.RoundTripper
}

// RTDB is a Tree backed by the Firebase Realtime Database.
// Listeners only observe writes made through this value.
type RTDB struct {
	client   *db.Client
	watchers watchers
}

var _ Tree = (*RTDB)(nil)

// NewRTDB connects to the database described by cfg.
func NewRTDB(ctx context.Context, cfg RTDBConfig) (*RTDB, error) {
	if cfg.URL == "" {
		return nil, errors.New("rtdb: database URL is required")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: strings.TrimRight(cfg.URL, "/")}, rtdbOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("rtdb: init app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("rtdb: init client: %w", err)
	}

	return &RTDB{client: client}, nil
}

func rtdbOptions(cfg RTDBConfig) []option.ClientOption {
	base := cfg.Transport

	switch {
	case cfg.TokenSource != nil:
		if base == nil {
			base = http.DefaultTransport
		}

		return []option.ClientOption{option.WithHTTPClient(&http.Client{
			Transport: &oauth2.Transport{Source: cfg.TokenSource, Base: base},
			Timeout:   rtdbTimeout,
		})}
	case base != nil:
		return []option.ClientOption{option.WithHTTPClient(&http.Client{Transport: base, Timeout: rtdbTimeout})}
	case cfg.CredentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}
	}

	return nil
}

// Close is a no-op; the client holds no resources.
func (r *RTDB) Close() error {
	return nil
}

// ref addresses a cleaned path. Segments are escaped because the client
// places the path into the request URL as is.
func (r *RTDB) ref(path string) *db.Ref {
	segs := strings.Split(path, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}

	return r.client.NewRef(strings.Join(segs, "/"))
}

// Get returns the value at path or nil.
func (r *RTDB) Get(ctx context.Context, path string) (any, error) {
	p, err := Clean(path)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, rtdbTimeout)
	defer cancel()

	var raw json.RawMessage
	if err := r.ref(p).Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}

	if len(raw) == 0 {
		return nil, nil
	}

	return decodeJSON(raw)
}

// Set replaces the value at path.
func (r *RTDB) Set(ctx context.Context, path string, value any) error {
	p, err := Clean(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, rtdbTimeout)
	defer cancel()

	if value == nil {
		err = r.ref(p).Delete(ctx)
	} else {
		err = r.ref(p).Set(ctx, value)
	}

	if err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}

	r.watchers.notify([]string{p}, r.Get)

	return nil
}

// Update sends one multi-location update, which the database applies
// atomically. A single key naming path itself is a Set.
func (r *RTDB) Update(ctx context.Context, path string, values map[string]any) error {
	base, err := Clean(path)
	if err != nil {
		return err
	}

	abs, err := absolute(base, values)
	if err != nil {
		return err
	}

	if len(abs) == 0 {
		return nil
	}

	// any other key would overlap it, which absolute rejects
	if v, ok := abs[base]; ok {
		return r.Set(ctx, base, v)
	}

	rel := make(map[string]any, len(abs))
	for p, v := range abs {
		rel[strings.TrimPrefix(strings.TrimPrefix(p, base), "/")] = v
	}

	ctx, cancel := context.WithTimeout(ctx, rtdbTimeout)
	defer cancel()

	if err := r.ref(base).Update(ctx, rel); err != nil {
		return fmt.Errorf("update %s: %w", base, err)
	}

	r.watchers.notify(slices.Collect(maps.Keys(abs)), r.Get)

	return nil
}

// Remove deletes the value at path.
func (r *RTDB) Remove(ctx context.Context, path string) error {
	return r.Set(ctx, path, nil)
}

// Push allocates a child key locally.
func (r *RTDB) Push(_ context.Context, path string) (string, error) {
	if _, err := Clean(path); err != nil {
		return "", err
	}

	return NewKey(), nil
}

// OnValue subscribes fn to changes at path made through this client.
func (r *RTDB) OnValue(path string, fn func(any)) func() {
	return r.watchers.subscribe(path, fn, r.Get)
}

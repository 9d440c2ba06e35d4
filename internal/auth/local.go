package auth

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.etcd.io/bbolt"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/hkdf"
)

const (
	// DefaultTokenTTL is how long a session token stays valid.
	DefaultTokenTTL = time.Hour

	issuer      = "pagewright"
	hkdfInfoJWT = "pagewright-session-signing"
)

var (
	usersBucket   = []byte("users")
	revokedBucket = []byte("revoked_tokens")
)

// User is a stored account.
type User struct {
	UID          string         `json:"uid"`
	Email        string         `json:"email"`
	PasswordHash []byte         `json:"passwordHash"`
	Claims       map[string]any `json:"claims,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastSignIn   time.Time      `json:"lastSignIn,omitzero"`
}

// LocalConfig configures a Local provider.
type LocalConfig struct {
	// Path is the bbolt database file.
	Path string
	// Secret is the master secret the token signing key is derived from.
	Secret string
	TTL    time.Duration
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
	Now      func() time.Time
	Logger   *slog.Logger
}

// Local is a Provider backed by a bbolt user database and HS256 tokens.
type Local struct {
	db     *bbolt.DB
	key    []byte
	ttl    time.Duration
	cost   int
	now    func() time.Time
	logger *slog.Logger
}

var _ Provider = (*Local)(nil)

type sessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewLocal opens (or creates) the user database at cfg.Path.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth secret is required")
	}

	key, err := deriveSigningKey(cfg.Secret)
	if err != nil {
		return nil, err
	}

	db, err := bbolt.Open(cfg.Path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open user database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{usersBucket, revokedBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	l := &Local{
		db:     db,
		key:    key,
		ttl:    cfg.TTL,
		cost:   cfg.HashCost,
		now:    cfg.Now,
		logger: cfg.Logger,
	}

	if l.ttl <= 0 {
		l.ttl = DefaultTokenTTL
	}

	if l.cost == 0 {
		l.cost = bcrypt.DefaultCost
	}

	if l.now == nil {
		l.now = time.Now
	}

	if l.logger == nil {
		l.logger = slog.Default()
	}

	return l, nil
}

// Close closes the user database.
func (l *Local) Close() error {
	return l.db.Close()
}

func deriveSigningKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfoJWT)), key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}

	return key, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials checks the shape of a new account's email and password.
func ValidateCredentials(email, password string) error {
	if !strings.Contains(email, "@") {
		return ErrInvalidEmail
	}

	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	return nil
}

// CreateUser stores a new account.
func (l *Local) CreateUser(_ context.Context, email, password string) (*User, error) {
	email = normalizeEmail(email)

	if err := ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    l.now().UTC(),
	}

	err = l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b.Get([]byte(email)) != nil {
			return fmt.Errorf("%w: %s", ErrUserExists, email)
		}

		return putUser(b, u)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("user created", "email", email, "uid", u.UID)

	return u, nil
}

// SetPassword replaces a user's password.
func (l *Local) SetPassword(_ context.Context, email, password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), l.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return l.updateUser(email, func(u *User) error {
		u.PasswordHash = hash

		return nil
	})
}

// GetUser returns the account for email.
func (l *Local) GetUser(_ context.Context, email string) (*User, error) {
	var u *User

	err := l.db.View(func(tx *bbolt.Tx) error {
		var err error

		u, err = getUser(tx.Bucket(usersBucket), normalizeEmail(email))

		return err
	})

	return u, err
}

// ListUsers returns every account ordered by email.
func (l *Local) ListUsers(_ context.Context) ([]*User, error) {
	var users []*User

	err := l.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(_, v []byte) error {
			var u User
			if err := json.Unmarshal(v, &u); err != nil {
				return err
			}

			users = append(users, &u)

			return nil
		})
	})

	return users, err
}

// DeleteUser removes an account.
func (l *Local) DeleteUser(_ context.Context, email string) error {
	email = normalizeEmail(email)

	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b.Get([]byte(email)) == nil {
			return fmt.Errorf("%w: %s", ErrUserNotFound, email)
		}

		return b.Delete([]byte(email))
	})
}

// SetClaims replaces all custom claims of a user.
func (l *Local) SetClaims(_ context.Context, email string, claims map[string]any) error {
	return l.updateUser(email, func(u *User) error {
		u.Claims = claims

		return nil
	})
}

// SetClaim sets one claim and returns the resulting claims.
func (l *Local) SetClaim(_ context.Context, email, name string, value any) (map[string]any, error) {
	var out map[string]any

	err := l.updateUser(email, func(u *User) error {
		if u.Claims == nil {
			u.Claims = map[string]any{}
		}

		u.Claims[name] = value
		out = u.Claims

		return nil
	})

	return out, err
}

// RemoveClaim deletes one claim. It reports whether the claim was present.
func (l *Local) RemoveClaim(_ context.Context, email, name string) (map[string]any, bool, error) {
	var (
		out     map[string]any
		removed bool
	)

	err := l.updateUser(email, func(u *User) error {
		_, removed = u.Claims[name]
		delete(u.Claims, name)
		out = u.Claims

		return nil
	})

	return out, removed, err
}

// GrantAdmin sets admin=true and role=admin.
func (l *Local) GrantAdmin(_ context.Context, email string) (map[string]any, error) {
	var out map[string]any

	err := l.updateUser(email, func(u *User) error {
		if u.Claims == nil {
			u.Claims = map[string]any{}
		}

		u.Claims[ClaimAdmin] = true
		u.Claims[ClaimRole] = RoleAdmin
		out = u.Claims

		return nil
	})

	return out, err
}

// RevokeAdmin removes the admin claim and an admin role. Other roles stay.
func (l *Local) RevokeAdmin(_ context.Context, email string) (map[string]any, error) {
	var out map[string]any

	err := l.updateUser(email, func(u *User) error {
		delete(u.Claims, ClaimAdmin)

		if role, _ := u.Claims[ClaimRole].(string); role == RoleAdmin {
			delete(u.Claims, ClaimRole)
		}

		out = u.Claims

		return nil
	})

	return out, err
}

// ListUsersWithClaim returns users carrying claim name. With an empty name it
// returns every user that has any claim. A non-nil value also has to match,
// compared by its printed form so "true" matches true.
func (l *Local) ListUsersWithClaim(ctx context.Context, name string, value any) ([]*User, error) {
	users, err := l.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	return slices.DeleteFunc(users, func(u *User) bool {
		if name == "" {
			return len(u.Claims) == 0
		}

		v, ok := u.Claims[name]
		if !ok {
			return true
		}

		return value != nil && fmt.Sprint(v) != fmt.Sprint(value)
	}), nil
}

// SignIn checks email and password and issues a session token.
func (l *Local) SignIn(_ context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)

	var u *User

	err := l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucket)

		var err error

		u, err = getUser(b, email)
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidCredentials
		}

		if err != nil {
			return err
		}

		if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
			return ErrInvalidCredentials
		}

		u.LastSignIn = l.now().UTC()

		return putUser(b, u)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			l.logger.Warn("sign in rejected", "email", email)
		}

		return "", err
	}

	now := l.now()
	claims := sessionClaims{
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   u.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	l.logger.Info("signed in", "email", u.Email)

	return token, nil
}

// SignOut revokes token until it would have expired anyway.
func (l *Local) SignOut(_ context.Context, token string) error {
	claims, err := l.parse(token)
	if err != nil {
		return nil
	}

	now := l.now()

	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(revokedBucket)

		if err := pruneRevoked(b, now); err != nil {
			return err
		}

		exp := claims.ExpiresAt.Time.UTC().Format(time.RFC3339)

		return b.Put([]byte(claims.ID), []byte(exp))
	})
}

// Verify validates token, rejects revoked tokens and returns the identity
// with the claims currently stored for the user.
func (l *Local) Verify(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := l.parse(token)
	if err != nil {
		return nil, err
	}

	var u *User

	err = l.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(revokedBucket).Get([]byte(claims.ID)) != nil {
			return ErrInvalidToken
		}

		var err error

		u, err = getUser(tx.Bucket(usersBucket), claims.Email)
		if errors.Is(err, ErrUserNotFound) {
			return ErrInvalidToken
		}

		return err
	})
	if err != nil {
		return nil, err
	}

	if u.UID != claims.Subject {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UID:       u.UID,
		Email:     u.Email,
		Claims:    u.Claims,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (l *Local) parse(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}

	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}

		return l.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.ID == "" || claims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (l *Local) updateUser(email string, fn func(*User) error) error {
	email = normalizeEmail(email)

	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucket)

		u, err := getUser(b, email)
		if err != nil {
			return err
		}

		if err := fn(u); err != nil {
			return err
		}

		return putUser(b, u)
	})
}

func getUser(b *bbolt.Bucket, email string) (*User, error) {
	data := b.Get([]byte(email))
	if data == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", email, err)
	}

	return &u, nil
}

func putUser(b *bbolt.Bucket, u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}

	return b.Put([]byte(u.Email), data)
}

// pruneRevoked drops revocations whose tokens have expired.
func pruneRevoked(b *bbolt.Bucket, now time.Time) error {
	var stale [][]byte

	err := b.ForEach(func(k, v []byte) error {
		exp, err := time.Parse(time.RFC3339, string(v))
		if err != nil || exp.Before(now) {
			stale = append(stale, slices.Clone(k))
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}

	return nil
}

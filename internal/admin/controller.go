// Package admin is the controller behind the admin panel. It opens sessions
// for operators holding the admin claim, keeps one content snapshot per
// session and routes every edit through the content service.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/inovacc/pagewright/internal/auth"
	"github.com/inovacc/pagewright/internal/content"
	"github.com/inovacc/pagewright/internal/model"
	"github.com/inovacc/pagewright/internal/publish"
	"github.com/inovacc/pagewright/internal/upload"
)

// AccessDeniedMessage is shown when a signed-in user lacks the admin claim.
const AccessDeniedMessage = "Access denied. Only admin users can access the panel."

var (
	ErrAccessDenied    = errors.New("access denied: admin claim required")
	ErrSessionExpired  = errors.New("session expired, sign in again")
	ErrPublishInFlight = errors.New("a publish is already in progress")
	ErrNotFound        = errors.New("item not found")
)

// Publisher fires a site rebuild on behalf of a token holder.
type Publisher interface {
	Publish(ctx context.Context, token string) (*publish.Response, error)
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Auth      auth.Provider
	Content   *content.Service
	Uploader  upload.Uploader
	Publisher Publisher
	Logger    *slog.Logger
	Now       func() time.Time
}

// Controller binds the content service to the admin panel.
type Controller struct {
	auth      auth.Provider
	content   *content.Service
	uploader  upload.Uploader
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a controller. A nil uploader means uploads are unavailable.
func New(d Deps) *Controller {
	c := &Controller{
		auth:      d.Auth,
		content:   d.Content,
		uploader:  d.Uploader,
		publisher: d.Publisher,
		logger:    d.Logger,
		now:       d.Now,
	}

	if c.uploader == nil {
		c.uploader = upload.Unavailable{}
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	if c.now == nil {
		c.now = time.Now
	}

	return c
}

// Login signs in and checks the admin claim before anything is loaded. A
// user without the claim is signed out again and gets ErrAccessDenied.
func (c *Controller) Login(ctx context.Context, email, password string) (*Session, error) {
	token, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	id, err := c.auth.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	if !id.IsAdmin() {
		if err := c.auth.SignOut(ctx, token); err != nil {
			c.logger.Warn("sign out after denied login failed", "email", id.Email, "error", err)
		}

		c.logger.Warn("admin access denied", "email", id.Email)

		return nil, ErrAccessDenied
	}

	s := newSession(token, id.Email)

	if err := c.Reload(ctx, s); err != nil {
		return nil, err
	}

	c.logger.Info("admin session opened", "email", id.Email, "session", s.ID)

	return s, nil
}

// Resume re-verifies the session token and the admin claim. It runs on
// every request so a revoked claim takes effect immediately.
func (c *Controller) Resume(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrSessionExpired
	}

	id, err := c.auth.Verify(ctx, s.Token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}

	if !id.IsAdmin() {
		_ = c.auth.SignOut(ctx, s.Token)

		return ErrAccessDenied
	}

	return nil
}

// Logout revokes the session token.
func (c *Controller) Logout(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}

	c.logger.Info("admin session closed", "email", s.Email, "session", s.ID)

	return c.auth.SignOut(ctx, s.Token)
}

// Reload replaces the session snapshot with a fresh read of all content.
func (c *Controller) Reload(ctx context.Context, s *Session) error {
	snap, err := c.content.GetAllContent(ctx)
	if err != nil {
		c.logger.Error("failed to load content", "error", err)

		return err
	}

	s.replace(snap, c.now())

	return nil
}

// SectionForm returns the form of a registered section.
func (c *Controller) SectionForm(name string) (model.Form, error) {
	if e, ok := content.Lookup(name); !ok || e.Kind == content.Collection {
		return model.Form{}, fmt.Errorf("%w: %s", content.ErrUnknownSection, name)
	}

	return model.SectionForm(name), nil
}

// ItemForm returns the form of the items stored in a collection.
func (c *Controller) ItemForm(collection string) (model.Form, error) {
	kind, ok := model.KindOf(collection)
	if !ok {
		return model.Form{}, fmt.Errorf("%w: %s", content.ErrUnknownCollection, collection)
	}

	form, _ := model.KindForm(kind)

	return form, nil
}

// FromForm converts submitted values into a record for form. Undeclared
// fields are dropped unless the form declares none, as for sections that
// are edited generically.
func FromForm(form model.Form, values map[string][]string) model.Record {
	rec := model.Coerce(form, values)
	if len(form.Fields) == 0 {
		return rec
	}

	for k := range rec {
		if _, ok := form.Field(k); !ok {
			delete(rec, k)
		}
	}

	return rec
}

// SaveSection validates and overwrites a section, then reloads.
func (c *Controller) SaveSection(ctx context.Context, s *Session, name string, data model.Record) (model.Record, error) {
	form, err := c.SectionForm(name)
	if err != nil {
		return nil, err
	}

	if err := model.Validate(form, data, false); err != nil {
		return nil, err
	}

	rec, err := c.content.SaveSection(ctx, name, data)
	if err != nil {
		return nil, err
	}

	return rec, c.Reload(ctx, s)
}

// AddItem validates and creates an item, then reloads.
func (c *Controller) AddItem(ctx context.Context, s *Session, collection string, data model.Record) (model.Record, error) {
	form, err := c.ItemForm(collection)
	if err != nil {
		return nil, err
	}

	if err := model.Validate(form, data, false); err != nil {
		return nil, err
	}

	if _, ok := data[model.FieldOrder]; !ok {
		data = data.Clone()
		data[model.FieldOrder] = len(s.Snapshot().Items(collection))
	}

	rec, err := c.content.CreateItem(ctx, collection, data.Without(model.FieldID, model.FieldCreatedAt, model.FieldUpdatedAt))
	if err != nil {
		return nil, err
	}

	return rec, c.Reload(ctx, s)
}

// EditForm returns the item form together with the stored values used to
// pre-fill it.
func (c *Controller) EditForm(s *Session, collection, id string) (model.Form, model.Record, error) {
	form, err := c.ItemForm(collection)
	if err != nil {
		return model.Form{}, nil, err
	}

	rec := s.Snapshot().Item(collection, id)
	if rec == nil {
		return model.Form{}, nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}

	return form, rec, nil
}

// EditItem applies a partial update to an existing item, then reloads.
// Only the fields present in data are checked and written.
func (c *Controller) EditItem(ctx context.Context, s *Session, collection, id string, data model.Record) (model.Record, error) {
	form, err := c.ItemForm(collection)
	if err != nil {
		return nil, err
	}

	if s.Snapshot().Item(collection, id) == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}

	if err := model.Validate(form, data, true); err != nil {
		return nil, err
	}

	rec, err := c.content.UpdateItem(ctx, collection, id, data.Without(model.FieldID, model.FieldCreatedAt, model.FieldUpdatedAt))
	if err != nil {
		return nil, err
	}

	return rec, c.Reload(ctx, s)
}

// DeleteItem removes an item, then reloads. The UI confirms beforehand.
func (c *Controller) DeleteItem(ctx context.Context, s *Session, collection, id string) error {
	if err := c.content.DeleteItem(ctx, collection, id); err != nil {
		return err
	}

	return c.Reload(ctx, s)
}

// ReorderItems stores the given id order, then reloads. Every id has to
// exist in the collection.
func (c *Controller) ReorderItems(ctx context.Context, s *Session, collection string, ids []string) error {
	if _, err := c.ItemForm(collection); err != nil {
		return err
	}

	for _, id := range ids {
		if s.Snapshot().Item(collection, id) == nil {
			return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
		}
	}

	if err := c.content.Reorder(ctx, collection, slices.Compact(slices.Clone(ids))); err != nil {
		return err
	}

	return c.Reload(ctx, s)
}

// UploadImage hands the file to the image host. An unconfigured host
// yields an Unavailable result, never an error.
func (c *Controller) UploadImage(ctx context.Context, filename string, r io.Reader) *upload.Result {
	return c.uploader.Upload(ctx, filename, r)
}

// Publish fires a rebuild with the session's token. Only one publish per
// session runs at a time.
func (c *Controller) Publish(ctx context.Context, s *Session) (*publish.Response, error) {
	if c.publisher == nil {
		return nil, errors.New("publishing is not configured")
	}

	if !s.publishing.CompareAndSwap(false, true) {
		return nil, ErrPublishInFlight
	}

	defer s.publishing.Store(false)

	return c.publisher.Publish(ctx, s.Token)
}

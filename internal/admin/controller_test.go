package admin

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/inovacc/pagewright/internal/auth"
	"github.com/inovacc/pagewright/internal/content"
	"github.com/inovacc/pagewright/internal/model"
	"github.com/inovacc/pagewright/internal/publish"
	"github.com/inovacc/pagewright/internal/store"
	"github.com/inovacc/pagewright/internal/upload"
)

type fakePublisher struct {
	mu      sync.Mutex
	tokens  []string
	release chan struct{}
}

func (f *fakePublisher) Publish(_ context.Context, token string) (*publish.Response, error) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()

	if f.release != nil {
		<-f.release
	}

	return &publish.Response{Success: true, Message: publish.SuccessMessage}, nil
}

type fakeUploader struct{ name string }

func (f *fakeUploader) Upload(_ context.Context, filename string, r io.Reader) *upload.Result {
	f.name = filename
	_, _ = io.Copy(io.Discard, r)

	return &upload.Result{Success: true, URL: "https://img.example.com/" + filename}
}

type testEnv struct {
	ctrl      *Controller
	users     *auth.Local
	tree      *store.Bolt
	publisher *fakePublisher
	uploader  *fakeUploader
}

func setupTestController(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()

	users, err := auth.NewLocal(auth.LocalConfig{
		Path:     filepath.Join(dir, "users.db"),
		Secret:   "test-secret",
		HashCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = users.Close() })

	tree, err := store.NewBolt(filepath.Join(dir, "content.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = tree.Close() })

	ctx := context.Background()

	_, err = users.CreateUser(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)
	_, err = users.GrantAdmin(ctx, "admin@example.com")
	require.NoError(t, err)

	_, err = users.CreateUser(ctx, "editor@example.com", "secret1")
	require.NoError(t, err)
	_, err = users.SetClaim(ctx, "editor@example.com", auth.ClaimRole, "editor")
	require.NoError(t, err)

	env := &testEnv{
		users:     users,
		tree:      tree,
		publisher: &fakePublisher{},
		uploader:  &fakeUploader{},
	}

	env.ctrl = New(Deps{
		Auth:      users,
		Content:   content.NewService(store.NewClient(tree, nil), nil),
		Uploader:  env.uploader,
		Publisher: env.publisher,
	})

	return env
}

func (e *testEnv) login(t *testing.T) *Session {
	t.Helper()

	s, err := e.ctrl.Login(context.Background(), "admin@example.com", "secret1")
	require.NoError(t, err)

	return s
}

func TestLogin(t *testing.T) {
	env := setupTestController(t)
	ctx := context.Background()

	require.NoError(t, env.tree.Set(ctx, "content/hero", map[string]any{"title": "Welcome"}))

	s := env.login(t)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "admin@example.com", s.Email)
	assert.Equal(t, "Welcome", s.Snapshot().Section("hero").String("title"))
	assert.False(t, s.LoadedAt().IsZero())

	require.NoError(t, env.ctrl.Resume(ctx, s))
}

func TestLogin_Rejected(t *testing.T) {
	env := setupTestController(t)
	ctx := context.Background()

	_, err := env.ctrl.Login(ctx, "admin@example.com", "wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	_, err = env.ctrl.Login(ctx, "editor@example.com", "secret1")
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestResume_AfterLogoutAndRevoke(t *testing.T) {
	env := setupTestController(t)
	ctx := context.Background()

	s := env.login(t)
	require.NoError(t, env.ctrl.Logout(ctx, s))
	require.ErrorIs(t, env.ctrl.Resume(ctx, s), ErrSessionExpired)

	s = env.login(t)
	_, err := env.users.RevokeAdmin(ctx, "admin@example.com")
	require.NoError(t, err)
	require.ErrorIs(t, env.ctrl.Resume(ctx, s), ErrAccessDenied)

	require.ErrorIs(t, env.ctrl.Resume(ctx, nil), ErrSessionExpired)
}

func TestSaveSection(t *testing.T) {
	env := setupTestController(t)
	ctx := context.Background()
	s := env.login(t)

	_, err := env.ctrl.SaveSection(ctx, s, "services", model.Record{"text": "no title"})

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"title"}, verr.Missing)

	rec, err := env.ctrl.SaveSection(ctx, s, "services", model.Record{"title": "What we do"})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.String(model.FieldUpdatedAt))
	assert.Equal(t, "What we do", s.Snapshot().Section("services").String("title"))

	_, err = env.ctrl.SaveSection(ctx, s, "projects", model.Record{"title": "x"})
	require.ErrorIs(t, err, content.ErrUnknownSection)
}

func TestItemLifecycle(t *testing.T) {
	env := setupTestController(t)
	ctx := context.Background()
	s := env.login(t)

	_, err := env.ctrl.AddItem(ctx, s, "projects", model.Record{"title": "No image"})

	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"imageUrl"}, verr.Missing)
	assert.Empty(t, s.Snapshot().Items("projects"))

	first, err := env.ctrl.AddItem(ctx, s, "projects", model.Record{"title": "One", "imageUrl": "a.jpg"})
	require.NoError(t, err)

	second, err := env.ctrl.AddItem(ctx, s, "projects", model.Record{"title": "Two", "imageUrl": "b.jpg"})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Order())
	require.Len(t, s.Snapshot().Items("projects"), 2)

	form, prefill, err := env.ctrl.EditForm(s, "projects", first.ID())
	require.NoError(t, err)
	assert.Equal(t, "project", form.Name)
	assert.Equal(t, "One", prefill.String("title"))

	_, err = env.ctrl.EditItem(ctx, s, "projects", first.ID(), model.Record{"title": ""})
	require.ErrorAs(t, err, &verr)

	updated, err := env.ctrl.EditItem(ctx, s, "projects", first.ID(), model.Record{"subtitle": "Sub"})
	require.NoError(t, err)
	assert.Equal(t, "Sub", updated.String("subtitle"))
	assert.Equal(t, "One", s.Snapshot().Item("projects", first.ID()).String("title"))
	assert.Equal(t, "Sub", s.Snapshot().Item("projects", first.ID()).String("subtitle"))

	require.NoError(t, env.ctrl.ReorderItems(ctx, s, "projects", []string{second.ID(), first.ID()}))

	items := s.Snapshot().Items("projects")
	require.Len(t, items, 2)
	assert.Equal(t, "Two", items[0].String("title"))

	require.NoError(t, env.ctrl.DeleteItem(ctx, s, "projects", first.ID()))
	assert.Len(t, s.Snapshot().Items("projects"), 1)

	_, _, err = env.ctrl.EditForm(s, "projects", first.ID())
	require.ErrorIs(t, err, ErrNotFound)

	_, err = env.ctrl.EditItem(ctx, s, "projects", first.ID(), model.Record{"title": "Gone"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReorderItems_UnknownID(t *testing.T) {
	env := setupTestController(t)
	ctx := context.Background()
	s := env.login(t)

	err := env.ctrl.ReorderItems(ctx, s, "faq", []string{"missing"})
	require.ErrorIs(t, err, ErrNotFound)

	err = env.ctrl.ReorderItems(ctx, s, "hero", nil)
	require.ErrorIs(t, err, content.ErrUnknownCollection)
}

func TestFromForm(t *testing.T) {
	form, _ := model.KindForm(model.KindFAQ)

	rec := FromForm(form, map[string][]string{
		"question": {"  Why? "},
		"answer":   {"Because"},
		"order":    {"3"},
		"isActive": {"on"},
		"csrf":     {"x"},
	})

	assert.Equal(t, model.Record{
		"question": "Why?",
		"answer":   "Because",
		"order":    3,
		"isActive": true,
	}, rec)

	generic := FromForm(model.SectionForm("custom"), map[string][]string{"anything": {"kept"}})
	assert.Equal(t, "kept", generic.String("anything"))
}

func TestUploadImage(t *testing.T) {
	env := setupTestController(t)

	res := env.ctrl.UploadImage(context.Background(), "hero.jpg", strings.NewReader("img"))
	assert.True(t, res.Success)
	assert.Equal(t, "hero.jpg", env.uploader.name)

	res = New(Deps{}).UploadImage(context.Background(), "hero.jpg", strings.NewReader("img"))
	assert.True(t, res.Unavailable)
	assert.False(t, res.Success)
}

func TestPublish_OneInFlight(t *testing.T) {
	env := setupTestController(t)
	s := env.login(t)

	env.publisher.release = make(chan struct{})

	done := make(chan error, 1)

	go func() {
		_, err := env.ctrl.Publish(context.Background(), s)
		done <- err
	}()

	require.Eventually(t, s.Publishing, time.Second, 5*time.Millisecond)

	_, err := env.ctrl.Publish(context.Background(), s)
	require.ErrorIs(t, err, ErrPublishInFlight)

	close(env.publisher.release)
	require.NoError(t, <-done)
	assert.False(t, s.Publishing())

	env.publisher.release = nil

	resp, err := env.ctrl.Publish(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{s.Token, s.Token}, env.publisher.tokens)
}

func TestPublish_NotConfigured(t *testing.T) {
	_, err := New(Deps{}).Publish(context.Background(), &Session{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrPublishInFlight))
}

func TestSessions(t *testing.T) {
	table := NewSessions()
	s := newSession("tok", "admin@example.com")

	table.Put(s)
	assert.Equal(t, 1, table.Len())

	got, ok := table.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)

	table.Delete(s.ID)

	_, ok = table.Get(s.ID)
	assert.False(t, ok)
}

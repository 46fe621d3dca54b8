package attendance

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"rollcall/internal/enrollment"
	"rollcall/internal/queue"
	"rollcall/internal/recognition"
	"rollcall/internal/store"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := store.NewDB(store.DriverSQLite, filepath.Join(t.TempDir(), "attendance.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return NewRepository(db)
}

// fixedProvider always identifies the same roll number.
type fixedProvider struct {
	match     recognition.Match
	err       error
	enrollErr error
	enrolled  []string
}

func (p *fixedProvider) Enroll(_ context.Context, rollNo string, _ []byte) error {
	if p.enrollErr != nil {
		return p.enrollErr
	}
	p.enrolled = append(p.enrolled, rollNo)
	return nil
}

func (p *fixedProvider) Identify(context.Context, []byte) (recognition.Match, error) {
	return p.match, p.err
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Type
	}
	return out
}

type testEnv struct {
	repo      *Repository
	artifacts *enrollment.Store
	provider  *fixedProvider
	events    *recordingPublisher
	svc       *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	artifacts, err := enrollment.New(filepath.Join(dir, "face_images"), filepath.Join(dir, "face_encodings"))
	if err != nil {
		t.Fatalf("enrollment.New: %v", err)
	}
	env := &testEnv{
		repo:      openTestRepo(t),
		artifacts: artifacts,
		provider:  &fixedProvider{},
		events:    &recordingPublisher{},
	}
	env.svc = NewService(env.repo, env.artifacts, env.provider, WithPublisher(env.events))
	return env
}

package submissions

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/lumetrymedia/stickerbooth/backend/internal/events"
	"gorm.io/gorm"
)

var testBaseTime = time.Unix(1756000000, 0).UTC()

type staticIDGenerator struct {
	ids  []string
	next int
}

func (g *staticIDGenerator) NewID() (string, error) {
	if g.next >= len(g.ids) {
		return "", errors.New("no ids left")
	}
	id := g.ids[g.next]
	g.next++
	return id, nil
}

type fakeStore struct {
	uploads  [][]byte
	folders  []string
	deleted  []string
	putErr   error
	putCount int
}

func (s *fakeStore) Put(_ context.Context, data []byte, _, folder string) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	s.putCount++
	s.uploads = append(s.uploads, data)
	s.folders = append(s.folders, folder)
	return fmt.Sprintf("https://cdn.test/%s/object-%d.png", folder, s.putCount), nil
}

func (s *fakeStore) Delete(_ context.Context, url string) {
	s.deleted = append(s.deleted, url)
}

type fakeEventLookup struct {
	events map[string]events.Event
	err    error
}

func (l *fakeEventLookup) Get(_ context.Context, eventID string) (events.Event, error) {
	if l.err != nil {
		return events.Event{}, l.err
	}
	event, ok := l.events[eventID]
	if !ok {
		return events.Event{}, events.ErrNotFound
	}
	return event, nil
}

type fakeNotifier struct {
	notices []CompletionNotice
}

func (n *fakeNotifier) NotifyCompletion(_ context.Context, notice CompletionNotice) {
	n.notices = append(n.notices, notice)
}

type fakeCompositor struct {
	err   error
	calls int
}

func (c *fakeCompositor) Composite(_ context.Context, image []byte, _ events.BrandingConfig) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return append([]byte("branded:"), image...), nil
}

type serviceHarness struct {
	service    *Service
	db         *gorm.DB
	store      *fakeStore
	lookup     *fakeEventLookup
	notifier   *fakeNotifier
	compositor *fakeCompositor
	now        time.Time
}

func (h *serviceHarness) advance(delta time.Duration) {
	h.now = h.now.Add(delta)
}

func newServiceHarness(t *testing.T, ids []string) *serviceHarness {
	t.Helper()

	dsn := fmt.Sprintf("file:stickerbooth_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Submission{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	harness := &serviceHarness{
		db: db,
		store: &fakeStore{},
		lookup: &fakeEventLookup{events: map[string]events.Event{
			"event-1": {ID: "event-1", Name: "Launch Party"},
		}},
		notifier:   &fakeNotifier{},
		compositor: &fakeCompositor{},
		now:        testBaseTime,
	}

	service, err := NewService(ServiceConfig{
		Database:   db,
		Clock:      func() time.Time { return harness.now },
		IDProvider: &staticIDGenerator{ids: ids},
		Store:      harness.store,
		Events:     harness.lookup,
		Notifier:   harness.notifier,
		Compositor: harness.compositor,
	})
	if err != nil {
		t.Fatalf("failed to construct submissions service: %v", err)
	}
	harness.service = service
	return harness
}

func photoPayload(t *testing.T, content string) string {
	t.Helper()
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func mustCreateSubmission(t *testing.T, h *serviceHarness, name string) Submission {
	t.Helper()
	submission, err := h.service.Create(context.Background(), CreateRequest{
		EventID: "event-1",
		Name:    name,
		Photo:   photoPayload(t, "photo-"+name),
		Prompt:  "a space explorer",
	})
	if err != nil {
		t.Fatalf("failed to create submission: %v", err)
	}
	return submission
}

func mustReload(t *testing.T, h *serviceHarness, submissionID string) Submission {
	t.Helper()
	var stored Submission
	if err := h.db.Where("id = ?", submissionID).Take(&stored).Error; err != nil {
		t.Fatalf("failed to reload submission %s: %v", submissionID, err)
	}
	return stored
}

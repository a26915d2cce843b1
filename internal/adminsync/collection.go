package adminsync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultPollInterval = 3 * time.Second

var errMissingClient = errors.New("adminsync: api client is required")

// Client is the slice of the API surface the collection needs; *APIClient
// satisfies it.
type Client interface {
	ListSubmissions(ctx context.Context, eventID, status string, limit int) ([]SubmissionRow, error)
	Approve(ctx context.Context, submissionID string) error
	Reject(ctx context.Context, submissionID string) error
	Delete(ctx context.Context, submissionID string) error
}

// CollectionConfig describes a polled submission view.
type CollectionConfig struct {
	Client       Client
	EventID      string
	Status       string
	Limit        int
	PollInterval time.Duration
	Logger       *zap.Logger
}

// Collection mirrors the server's submission list for one queue view. Server
// state is authoritative: every poll replaces local rows wholesale. Operator
// actions are applied optimistically so the view reacts immediately; if the
// request fails, the local guess is discarded and the whole view reloads.
type Collection struct {
	client   Client
	eventID  string
	status   string
	limit    int
	interval time.Duration
	logger   *zap.Logger

	mu   sync.RWMutex
	rows map[string]SubmissionRow
}

// NewCollection constructs a collection; call Refresh or Run to populate it.
func NewCollection(cfg CollectionConfig) (*Collection, error) {
	if cfg.Client == nil {
		return nil, errMissingClient
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collection{
		client:   cfg.Client,
		eventID:  cfg.EventID,
		status:   cfg.Status,
		limit:    cfg.Limit,
		interval: interval,
		logger:   logger,
		rows:     make(map[string]SubmissionRow),
	}, nil
}

// Run polls until the context is cancelled. Poll failures are logged and the
// previous snapshot is kept; the next tick retries.
func (c *Collection) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("initial submission poll failed", zap.Error(err))
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Warn("submission poll failed", zap.Error(err))
			}
		}
	}
}

// Refresh replaces the local rows with the server's current list.
func (c *Collection) Refresh(ctx context.Context) error {
	listed, err := c.client.ListSubmissions(ctx, c.eventID, c.status, c.limit)
	if err != nil {
		return err
	}

	replacement := make(map[string]SubmissionRow, len(listed))
	for _, row := range listed {
		replacement[row.ID] = row
	}

	c.mu.Lock()
	c.rows = replacement
	c.mu.Unlock()
	return nil
}

// Snapshot returns the current rows newest-first.
func (c *Collection) Snapshot() []SubmissionRow {
	c.mu.RLock()
	rows := make([]SubmissionRow, 0, len(c.rows))
	for _, row := range c.rows {
		rows = append(rows, row)
	}
	c.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	return rows
}

// Get returns one row by id.
func (c *Collection) Get(submissionID string) (SubmissionRow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	row, ok := c.rows[submissionID]
	return row, ok
}

// Approve optimistically marks the row approved, then confirms with the
// server. On failure the optimistic guess is discarded by a full reload.
func (c *Collection) Approve(ctx context.Context, submissionID string) error {
	c.setLocalStatus(submissionID, "approved")
	if err := c.client.Approve(ctx, submissionID); err != nil {
		return c.discardAndReload(ctx, err)
	}
	return nil
}

// Reject optimistically marks the row rejected, then confirms with the server.
func (c *Collection) Reject(ctx context.Context, submissionID string) error {
	c.setLocalStatus(submissionID, "rejected")
	if err := c.client.Reject(ctx, submissionID); err != nil {
		return c.discardAndReload(ctx, err)
	}
	return nil
}

// Delete optimistically removes the row, then confirms with the server.
func (c *Collection) Delete(ctx context.Context, submissionID string) error {
	c.mu.Lock()
	delete(c.rows, submissionID)
	c.mu.Unlock()

	if err := c.client.Delete(ctx, submissionID); err != nil {
		return c.discardAndReload(ctx, err)
	}
	return nil
}

func (c *Collection) setLocalStatus(submissionID, status string) {
	c.mu.Lock()
	if row, ok := c.rows[submissionID]; ok {
		row.Status = status
		c.rows[submissionID] = row
	}
	c.mu.Unlock()
}

// There is no fine-grained rollback: any request failure throws away every
// local guess and reloads authoritative state.
func (c *Collection) discardAndReload(ctx context.Context, cause error) error {
	if refreshErr := c.Refresh(ctx); refreshErr != nil {
		c.logger.Warn("reload after failed action also failed", zap.Error(refreshErr))
	}
	return cause
}

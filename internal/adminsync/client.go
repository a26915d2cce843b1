// Package adminsync keeps an admin review surface in step with the API
// server: a polled submission collection with optimistic local updates for
// the operator actions that need to feel instant.
package adminsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SubmissionRow is the wire shape of one submission as the list endpoint
// returns it.
type SubmissionRow struct {
	ID            string     `json:"id"`
	EventID       string     `json:"event_id"`
	Name          string     `json:"name"`
	PhotoURL      string     `json:"photo_url"`
	Prompt        string     `json:"prompt"`
	CustomText    string     `json:"custom_text"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	FailureReason string     `json:"failure_reason"`
	ApprovedAt    *time.Time `json:"approved_at"`
	ProcessedAt   *time.Time `json:"processed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

type listResponse struct {
	Submissions []SubmissionRow `json:"submissions"`
	Total       int64           `json:"total"`
	HasMore     bool            `json:"has_more"`
}

// APIClient talks to the API server with an admin bearer token.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClient constructs a client against the given base URL.
func NewAPIClient(baseURL, token string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// ListSubmissions fetches one page of submissions, optionally filtered.
func (c *APIClient) ListSubmissions(ctx context.Context, eventID, status string, limit int) ([]SubmissionRow, error) {
	query := url.Values{}
	if eventID != "" {
		query.Set("event_id", eventID)
	}
	if status != "" {
		query.Set("status", status)
	}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}

	endpoint := c.baseURL + "/api/submissions"
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var response listResponse
	if err := c.doJSON(ctx, http.MethodGet, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Submissions, nil
}

// Approve queues a submission for the processor.
func (c *APIClient) Approve(ctx context.Context, submissionID string) error {
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/submissions/"+submissionID+"/approve", nil)
}

// Reject declines a submission.
func (c *APIClient) Reject(ctx context.Context, submissionID string) error {
	return c.doJSON(ctx, http.MethodPost, c.baseURL+"/api/submissions/"+submissionID+"/reject", nil)
}

// Delete removes a submission and its stored images.
func (c *APIClient) Delete(ctx context.Context, submissionID string) error {
	return c.doJSON(ctx, http.MethodDelete, c.baseURL+"/api/submissions/"+submissionID, nil)
}

func (c *APIClient) doJSON(ctx context.Context, method, endpoint string, target any) error {
	request, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Authorization", "Bearer "+c.token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, response.StatusCode, strings.TrimSpace(string(body)))
	}
	if target == nil {
		return nil
	}
	return json.NewDecoder(response.Body).Decode(target)
}

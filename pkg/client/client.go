// Package client provides a Go SDK for the MetaPM HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coreyprator/metapm/pkg/models"
)

// Client calls the MetaPM HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:8844"
	APIKey     string       // optional; set for X-API-Key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:8844").
// APIKey is optional; when set, requests use the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	u := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// CreateHandoff ingests a handoff document and returns the creation result
// (Duplicate is true when identical content was already recorded).
func (c *Client) CreateHandoff(ctx context.Context, req models.HandoffCreate) (*models.HandoffCreated, error) {
	var out models.HandoffCreated
	err := c.doJSON(ctx, http.MethodPost, "/handoffs", req, &out)
	return &out, err
}

// HandoffListOptions filters ListHandoffs. Zero values are omitted.
type HandoffListOptions struct {
	Project   string
	Statuses  []string
	Direction string
	Search    string
	Sort      string
	Order     string
	Page      int
	Limit     int
}

func (o HandoffListOptions) query() string {
	q := url.Values{}
	if o.Project != "" {
		q.Set("project", o.Project)
	}
	if len(o.Statuses) > 0 {
		q.Set("status", strings.Join(o.Statuses, ","))
	}
	if o.Direction != "" {
		q.Set("direction", o.Direction)
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Sort != "" {
		q.Set("sort", o.Sort)
	}
	if o.Order != "" {
		q.Set("order", o.Order)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListHandoffs returns a filtered, paginated handoff page.
func (c *Client) ListHandoffs(ctx context.Context, opts HandoffListOptions) (*models.HandoffList, error) {
	var out models.HandoffList
	err := c.doJSON(ctx, http.MethodGet, "/handoffs"+opts.query(), nil, &out)
	return &out, err
}

// GetHandoff returns one handoff with its full content.
func (c *Client) GetHandoff(ctx context.Context, id string) (*models.Handoff, error) {
	var out models.Handoff
	err := c.doJSON(ctx, http.MethodGet, "/handoffs/"+url.PathEscape(id), nil, &out)
	return &out, err
}

// GetHandoffContent returns the raw markdown document.
func (c *Client) GetHandoffContent(ctx context.Context, id string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/handoffs/"+url.PathEscape(id)+"/content", nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api GET content: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

// UpdateStatus moves a handoff to a new lifecycle status.
func (c *Client) UpdateStatus(ctx context.Context, id, status string) (*models.Handoff, error) {
	var out models.Handoff
	err := c.doJSON(ctx, http.MethodPatch, "/handoffs/"+url.PathEscape(id),
		map[string]string{"status": status}, &out)
	return &out, err
}

// Complete records a completion against a handoff.
func (c *Client) Complete(ctx context.Context, id string, req models.CompletionCreate) error {
	return c.doJSON(ctx, http.MethodPost, "/handoffs/"+url.PathEscape(id)+"/complete", req, nil)
}

// SubmitUAT records a UAT run against a handoff and returns the stored result.
func (c *Client) SubmitUAT(ctx context.Context, id string, req models.UATSubmit) (*models.UATResult, error) {
	var out models.UATResult
	err := c.doJSON(ctx, http.MethodPost, "/handoffs/"+url.PathEscape(id)+"/uat", req, &out)
	return &out, err
}

// SubmitDirectUAT records a checklist result by project/version, creating a
// handoff when none matches.
func (c *Client) SubmitDirectUAT(ctx context.Context, req models.UATDirectSubmit) (*models.UATResult, error) {
	var out models.UATResult
	err := c.doJSON(ctx, http.MethodPost, "/uat/submit", req, &out)
	return &out, err
}

// UATHistory returns all UAT attempts for a handoff, newest first.
func (c *Client) UATHistory(ctx context.Context, id string) (*models.UATHistory, error) {
	var out models.UATHistory
	err := c.doJSON(ctx, http.MethodGet, "/handoffs/"+url.PathEscape(id)+"/uat", nil, &out)
	return &out, err
}

// LatestUAT returns the most recent UAT result for a project (version optional).
func (c *Client) LatestUAT(ctx context.Context, project, version string) (*models.UATResult, error) {
	q := url.Values{"project": {project}}
	if version != "" {
		q.Set("version", version)
	}
	var out models.UATResult
	err := c.doJSON(ctx, http.MethodGet, "/uat/latest?"+q.Encode(), nil, &out)
	return &out, err
}

// Stats returns aggregate handoff counts.
func (c *Client) Stats(ctx context.Context) (*models.Stats, error) {
	var out models.Stats
	err := c.doJSON(ctx, http.MethodGet, "/handoffs/stats", nil, &out)
	return &out, err
}

// Sync triggers a bucket scan on the server and returns the summary.
func (c *Client) Sync(ctx context.Context) (*models.SyncSummary, error) {
	var out models.SyncSummary
	err := c.doJSON(ctx, http.MethodPost, "/handoffs/sync", nil, &out)
	return &out, err
}

// ExportLog returns a project's HANDOFF_LOG markdown table.
func (c *Client) ExportLog(ctx context.Context, project string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/handoffs/export/log?project="+url.QueryEscape(project), nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api GET export: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	return string(b), err
}

// LinkRequirement links a handoff to a requirement.
func (c *Client) LinkRequirement(ctx context.Context, requirementID string, req models.RequirementLinkCreate) error {
	return c.doJSON(ctx, http.MethodPost, "/requirements/"+url.PathEscape(requirementID)+"/handoffs", req, nil)
}

// RequirementHandoffs lists the handoffs linked to a requirement.
func (c *Client) RequirementHandoffs(ctx context.Context, requirementID string) ([]models.Handoff, error) {
	var out struct {
		Handoffs []models.Handoff `json:"handoffs"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/requirements/"+url.PathEscape(requirementID)+"/handoffs", nil, &out)
	return out.Handoffs, err
}

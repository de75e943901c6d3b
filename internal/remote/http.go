package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// HTTPConfig configures an HTTPClient.
type HTTPConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// DefaultHTTPConfig returns sensible defaults for the hosted document API.
func DefaultHTTPConfig(token string) HTTPConfig {
	return HTTPConfig{
		BaseURL: "https://api.pagesmith.dev/v1",
		Token:   token,
		Timeout: 30 * time.Second,
	}
}

// HTTPClient implements Client against the document API over HTTPS.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHTTPClient creates a client with per-request timeouts.
func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

func (c *HTTPClient) Search(ctx context.Context, query string) ([]Candidate, error) {
	body := map[string]string{"query": query}
	var out struct {
		Results []Candidate `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/search", "", body, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *HTTPClient) GetChildren(ctx context.Context, nodeID, cursor string) (ChildPage, error) {
	path := fmt.Sprintf("/nodes/%s/children", url.PathEscape(nodeID))
	if cursor != "" {
		path += "?cursor=" + url.QueryEscape(cursor)
	}
	var page ChildPage
	if err := c.do(ctx, http.MethodGet, path, nodeID, nil, &page); err != nil {
		return ChildPage{}, err
	}
	return page, nil
}

func (c *HTTPClient) AppendChildren(ctx context.Context, parentID string, payloads []Payload, afterID string) ([]string, error) {
	body := map[string]any{"children": payloads}
	if afterID != "" {
		body["after"] = afterID
	}
	var out struct {
		CreatedIDs []string `json:"created_ids"`
	}
	path := fmt.Sprintf("/nodes/%s/children", url.PathEscape(parentID))
	if err := c.do(ctx, http.MethodPatch, path, parentID, body, &out); err != nil {
		return nil, err
	}
	if len(out.CreatedIDs) != len(payloads) {
		return nil, fmt.Errorf("append under %s: expected %d created ids, got %d", parentID, len(payloads), len(out.CreatedIDs))
	}
	return out.CreatedIDs, nil
}

func (c *HTTPClient) UpdateNode(ctx context.Context, nodeID string, payload Payload) error {
	path := "/nodes/" + url.PathEscape(nodeID)
	return c.do(ctx, http.MethodPatch, path, nodeID, payload, nil)
}

func (c *HTTPClient) DeleteNode(ctx context.Context, nodeID string) error {
	path := "/nodes/" + url.PathEscape(nodeID)
	err := c.do(ctx, http.MethodDelete, path, nodeID, nil, nil)
	if err == nil {
		return nil
	}
	// Deleting an already-deleted node is success for our purposes.
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *HTTPClient) do(ctx context.Context, method, path, nodeID string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Op:     opName(method, path),
			NodeID: nodeID,
			Status: resp.StatusCode,
			Msg:    string(msg),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func opName(method, path string) string {
	switch {
	case method == http.MethodPost && path == "/search":
		return "search"
	case method == http.MethodGet:
		return "get_children"
	case method == http.MethodDelete:
		return "delete_node"
	case method == http.MethodPatch && len(path) > 9 && path[len(path)-9:] == "/children":
		return "append_children"
	default:
		return "update_node"
	}
}

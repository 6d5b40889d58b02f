// Package remote implements the collection store contract over the REST API.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/evanschultz/reeldesk/internal/app"
	"github.com/evanschultz/reeldesk/internal/domain"
)

// defaultTimeout bounds every non-streaming request.
const defaultTimeout = 10 * time.Second

// resubscribeDelay is the pause before an event stream reconnects.
var resubscribeDelay = time.Second

// Client talks to a reeldesk API mounted at BaseURL (for example http://127.0.0.1:8080/api/v1).
type Client struct {
	BaseURL string
	HTTP    *http.Client
	// Stream is used for the long-lived event stream and has no timeout.
	Stream *http.Client
}

// New creates a new Client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: defaultTimeout},
		Stream:  &http.Client{},
	}
}

// Error is one decoded API error envelope.
type Error struct {
	Status  int
	Code    string
	Message string
	Hint    string
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("remote %d %s: %s", e.Status, e.Code, e.Message)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

// Unwrap maps the wire error code back to the application sentinels.
func (e *Error) Unwrap() error {
	switch e.Code {
	case "not_found":
		return app.ErrNotFound
	case "invalid_request":
		return app.ErrValidation
	case "partial_batch_failure":
		return app.ErrPartialBatch
	default:
		return app.ErrPersistence
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Hint    string `json:"hint"`
	} `json:"error"`
}

// List fetches the items of one collection in display order.
func (c *Client) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	query := url.Values{}
	if filter.Kind != "" {
		query.Set("kind", filter.Kind)
	}
	if filter.Visibility != domain.VisibilityAny {
		query.Set("visibility", string(filter.Visibility))
	}
	path := collectionPath(filter.Collection, "items")
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out struct {
		Items []domain.Item `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list %s: %w", filter.Collection, err)
	}
	if out.Items == nil {
		out.Items = []domain.Item{}
	}
	domain.SortItems(out.Items)
	return out.Items, nil
}

// UpdateOrder writes one display order.
func (c *Client) UpdateOrder(ctx context.Context, collection domain.Collection, itemID string, order int) error {
	body := map[string]int{"display_order": order}
	if err := c.do(ctx, http.MethodPut, collectionPath(collection, "items", itemID, "order"), body, nil); err != nil {
		return fmt.Errorf("update order %s/%s: %w", collection, itemID, err)
	}
	return nil
}

// UpdateStatus writes one status.
func (c *Client) UpdateStatus(ctx context.Context, collection domain.Collection, itemID string, status string) error {
	body := map[string]string{"status": status}
	if err := c.do(ctx, http.MethodPut, collectionPath(collection, "items", itemID, "status"), body, nil); err != nil {
		return fmt.Errorf("update status %s/%s: %w", collection, itemID, err)
	}
	return nil
}

// ApplyOrder writes every update through the transactional batch route.
func (c *Client) ApplyOrder(ctx context.Context, collection domain.Collection, updates []app.OrderUpdate) error {
	body := map[string]any{"updates": updates}
	if err := c.do(ctx, http.MethodPut, collectionPath(collection, "order"), body, nil); err != nil {
		return fmt.Errorf("apply order %s: %w", collection, err)
	}
	return nil
}

// Invalidate asks the server to drop cached lists and notify subscribers.
// Failures are swallowed; the next list refetches either way.
func (c *Client) Invalidate(ctx context.Context, collection domain.Collection) {
	_ = c.do(ctx, http.MethodPost, collectionPath(collection, "invalidate"), nil, nil)
}

// Subscribe follows the server event stream for collection, or every collection when empty.
// The stream reconnects until the returned func is called.
func (c *Client) Subscribe(collection domain.Collection) (<-chan app.Invalidation, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan app.Invalidation, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			_ = c.stream(ctx, collection, ch)
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
		}
	}()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			cancel()
			wg.Wait()
			close(ch)
		})
	}
}

// stream reads one SSE connection until it ends.
func (c *Client) stream(ctx context.Context, collection domain.Collection, ch chan app.Invalidation) error {
	path := "/events"
	if collection != "" {
		path += "?collection=" + url.QueryEscape(string(collection))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.streamClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	event := ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			event = ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && event == "invalidate":
			var inv app.Invalidation
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &inv); err != nil {
				continue
			}
			select {
			case ch <- inv:
			default:
			}
		}
	}
	return scanner.Err()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return err
		}
		reader = buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", app.ErrPersistence, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) streamClient() *http.Client {
	if c.Stream != nil {
		return c.Stream
	}
	return http.DefaultClient
}

func decodeError(resp *http.Response) error {
	remoteErr := &Error{Status: resp.StatusCode, Code: "internal_error", Message: http.StatusText(resp.StatusCode)}
	var envelope errorEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&envelope); err == nil && envelope.Error.Code != "" {
		remoteErr.Code = envelope.Error.Code
		remoteErr.Message = envelope.Error.Message
		remoteErr.Hint = envelope.Error.Hint
	} else if resp.StatusCode == http.StatusNotFound {
		remoteErr.Code = "not_found"
	}
	return remoteErr
}

func collectionPath(collection domain.Collection, parts ...string) string {
	segments := []string{"", "collections", url.PathEscape(string(collection))}
	for _, part := range parts {
		segments = append(segments, url.PathEscape(part))
	}
	return strings.Join(segments, "/")
}

var _ interface {
	app.CollectionStore
	app.BatchOrderer
	app.Subscriber
} = (*Client)(nil)

var errNoBaseURL = errors.New("remote base url is required")

// Validate reports a missing base URL.
func (c *Client) Validate() error {
	if c == nil || c.BaseURL == "" {
		return errNoBaseURL
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("parse remote base url: %w", err)
	}
	return nil
}

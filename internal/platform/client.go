package platform

import (
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

	"github.com/pantheon-bots/pantheon/internal/shared/stringutils"
)

// APIError is a non-2xx platform response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("platform: status %d: %s", e.Status, e.Body)
}

// IsTransient reports whether err is worth retrying on the next poll cycle:
// transport failures, timeouts, and 5xx responses.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	return err != nil
}

// Client talks to the platform REST API. One client is shared by all
// pollers and the dispatcher; the bearer credential is passed per call
// because each agent posts under its own token.
type Client struct {
	baseURL    string
	httpClient *http.Client

	userMu sync.Mutex
	users  map[string]User // user id -> user, authors rarely change
}

// NewClient creates a Client for the API at baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		users:      make(map[string]User),
	}
}

// PostsSince returns posts in channelID strictly newer than sinceID.
// An empty sinceID returns the most recent page (used on first sight of a
// channel, where only the newest post is processed).
func (c *Client) PostsSince(ctx context.Context, token, channelID, sinceID string) (*PostList, error) {
	q := url.Values{}
	if sinceID != "" {
		q.Set("after", sinceID)
	} else {
		q.Set("per_page", "10")
	}
	path := fmt.Sprintf("/api/v4/channels/%s/posts?%s", channelID, q.Encode())

	var pl PostList
	if err := c.do(ctx, http.MethodGet, path, token, nil, &pl); err != nil {
		return nil, err
	}
	return &pl, nil
}

// Channels enumerates the channels reachable by the credential.
func (c *Client) Channels(ctx context.Context, token string) ([]Channel, error) {
	var chs []Channel
	if err := c.do(ctx, http.MethodGet, "/api/v4/users/me/channels", token, nil, &chs); err != nil {
		return nil, err
	}
	return chs, nil
}

// User resolves a user id to its profile, caching results: post authors
// repeat constantly within one channel.
func (c *Client) User(ctx context.Context, token, userID string) (User, error) {
	c.userMu.Lock()
	if u, ok := c.users[userID]; ok {
		c.userMu.Unlock()
		return u, nil
	}
	c.userMu.Unlock()

	var u User
	if err := c.do(ctx, http.MethodGet, "/api/v4/users/"+userID, token, nil, &u); err != nil {
		return User{}, err
	}

	c.userMu.Lock()
	c.users[userID] = u
	c.userMu.Unlock()
	return u, nil
}

// CreatePost posts a message and returns the created post id.
// The platform answers 201 on success.
func (c *Client) CreatePost(ctx context.Context, token string, req CreatePostRequest) (string, error) {
	var created Post
	if err := c.do(ctx, http.MethodPost, "/api/v4/posts", token, req, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("platform: marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("platform: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("platform: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Body: truncateBody(data)}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("platform: decode %s response: %w", path, err)
		}
	}
	return nil
}

func truncateBody(b []byte) string {
	return stringutils.Truncate(string(b), 200)
}

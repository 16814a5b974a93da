package gbot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/sunshine-protocol/bounty-bot/agreement"
)

// HTTPClient is the part of *http.Client the REST calls need.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client writes the bot's comments through the GitHub REST API.
// Requests are throttled by a token bucket shared by all callers, and held
// back while GitHub reports the quota as spent.
type Client struct {
	commenter

	baseURL    string
	token      string
	login      string
	httpClient HTTPClient
	limiter    *rate.Limiter
	rateLimit  *rateLimitTracker
}

var _ agreement.CommentAPI = (*Client)(nil)

// NewClient resolves the login behind the token. Only comments authored by
// that login are taken as the bot's own.
func NewClient(ctx context.Context, cfg *Config, httpClient HTTPClient) (*Client, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	rps := cfg.RequestsPerSecond
	if rps == 0 {
		rps = defaultRequestsPerSecond
	}
	limit := rate.Limit(rps)
	if rps < 0 {
		limit = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		rateLimit:  newRateLimitTracker(),
	}
	c.commenter = commenter{backend: c}

	var me User
	if _, err := c.do(ctx, http.MethodGet, c.baseURL+"/user", nil, &me); err != nil {
		return nil, fmt.Errorf("resolving the token's login: %w", err)
	}
	if me.Login == "" {
		return nil, ErrNoLogin
	}
	c.login = me.Login
	logger.WithField("login", c.login).Info("github client ready")
	return c, nil
}

// Login is the account the bot comments as.
func (c *Client) Login() string {
	return c.login
}

// ListComments returns every comment of an issue, following pagination.
func (c *Client) ListComments(ctx context.Context, owner, repo string, number uint64) ([]Comment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments?per_page=%d", c.baseURL, owner, repo, number, commentsPerPage)

	var all []Comment
	for url != "" {
		var page []Comment
		header, err := c.do(ctx, http.MethodGet, url, nil, &page)
		if err != nil {
			return nil, fmt.Errorf("listing comments on %s/%s#%d: %w", owner, repo, number, err)
		}
		all = append(all, page...)
		url = parseLinkNext(header.Get("Link"))
	}
	return all, nil
}

func (c *Client) find(ctx context.Context, key agreement.CommentKey) (*Comment, error) {
	comments, err := c.ListComments(ctx, key.RepoOwner, key.RepoName, key.IssueNumber)
	if err != nil {
		return nil, err
	}
	for i := range comments {
		if strings.EqualFold(comments[i].User.Login, c.login) && HasMarker(comments[i].Body, key) {
			return &comments[i], nil
		}
	}
	return nil, nil
}

func (c *Client) create(ctx context.Context, key agreement.CommentKey, body string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, key.RepoOwner, key.RepoName, key.IssueNumber)

	var created Comment
	if _, err := c.do(ctx, http.MethodPost, url, commentRequest{Body: body}, &created); err != nil {
		return fmt.Errorf("creating comment %s: %w", key, err)
	}
	logger.WithFields(logger.Fields{
		"comment": key.String(),
		"id":      created.ID,
	}).Info("comment created")
	return nil
}

func (c *Client) edit(ctx context.Context, key agreement.CommentKey, commentID int64, body string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/comments/%d", c.baseURL, key.RepoOwner, key.RepoName, commentID)

	if _, err := c.do(ctx, http.MethodPatch, url, commentRequest{Body: body}, nil); err != nil {
		return fmt.Errorf("editing comment %s: %w", key, err)
	}
	logger.WithFields(logger.Fields{
		"comment": key.String(),
		"id":      commentID,
	}).Info("comment updated")
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, reqBody, result interface{}) (http.Header, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if err := c.rateLimit.wait(ctx); err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", userAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	c.rateLimit.update(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(body)}
		var wire errorResponse
		if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
			apiErr.Message = wire.Message
		}
		if IsRateLimited(apiErr) {
			backoff := c.rateLimit.retryAfter(resp.Header)
			c.rateLimit.block(backoff)
			logger.WithFields(logger.Fields{
				"status":  resp.StatusCode,
				"backoff": backoff,
			}).Warn("github rate limit hit")
		}
		return nil, apiErr
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.Header, nil
}

// parseLinkNext returns the rel="next" URL of a Link header, or "".
func parseLinkNext(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.SplitN(strings.TrimSpace(part), ";", 2)
		if len(segments) != 2 || !strings.Contains(segments[1], `rel="next"`) {
			continue
		}
		u := strings.TrimSpace(segments[0])
		if strings.HasPrefix(u, "<") && strings.HasSuffix(u, ">") {
			return u[1 : len(u)-1]
		}
	}
	return ""
}

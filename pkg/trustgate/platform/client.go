// Package platform provides the capability boundary to the social platform
// API: batch handle resolution, paginated follower listing, credential
// verification, and mention retrieval. Outcomes are reported as a closed set
// of variants so callers handle each condition explicitly instead of
// catching broad error classes.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Client is the capability the trust subsystem requires from the platform.
type Client interface {
	// ResolveHandles performs one batch lookup of handles to accounts.
	// Per-item failures are reported in the result, not as an error.
	ResolveHandles(ctx context.Context, handles []string) (*ResolveResult, error)

	// ListFollowers fetches one page of followers for an account. Pass an
	// empty pageToken for the first page.
	ListFollowers(ctx context.Context, accountID, pageToken string, pageSize int) (*FollowerPage, error)

	// VerifyCredentials checks authentication and returns the authenticated
	// account.
	VerifyCredentials(ctx context.Context) (*Account, error)

	// RecentMentions returns mentions of the given account newer than
	// sinceID, oldest first. Pass an empty sinceID for the most recent page.
	RecentMentions(ctx context.Context, accountID, sinceID string) ([]Mention, error)
}

// HTTPConfig holds configuration for the HTTP platform client.
type HTTPConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	BearerToken    string        `mapstructure:"bearer_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryMax       int           `mapstructure:"retry_max"`
	CallsPerSecond float64       `mapstructure:"calls_per_second"`
}

// HTTPClient implements Client against a v2-style REST API using a retrying
// transport and a client-side rate limiter to stay under per-second call
// ceilings.
type HTTPClient struct {
	base    string
	token   string
	http    *retryablehttp.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a platform client from the given configuration.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("platform base URL is required")
	}
	if cfg.BearerToken == "" {
		return nil, fmt.Errorf("platform bearer token is required")
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.HTTPClient.Timeout = cfg.RequestTimeout
	rc.Logger = nil
	// 429s are handled by the caller with the platform's retry-after hint,
	// not by the transport.
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if err != nil {
			return true, nil
		}
		return resp.StatusCode >= 500, nil
	}

	cps := cfg.CallsPerSecond
	if cps <= 0 {
		cps = 1.0
	}

	return &HTTPClient{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.BearerToken,
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(cps), 1),
	}, nil
}

// ResolveHandles implements Client.
func (c *HTTPClient) ResolveHandles(ctx context.Context, handles []string) (*ResolveResult, error) {
	q := url.Values{}
	q.Set("usernames", strings.Join(handles, ","))
	q.Set("user.fields", "id,username,name")

	var payload struct {
		Data []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"data"`
		Errors []struct {
			Value  string `json:"value"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := c.get(ctx, "/users/by", q, &payload); err != nil {
		return nil, err
	}

	result := &ResolveResult{}
	for _, u := range payload.Data {
		result.Resolved = append(result.Resolved, Account{
			ID:          u.ID,
			Handle:      u.Username,
			DisplayName: u.Name,
		})
	}
	for _, e := range payload.Errors {
		result.Failed = append(result.Failed, ResolveFailure{Handle: e.Value, Reason: e.Detail})
	}
	return result, nil
}

// ListFollowers implements Client.
func (c *HTTPClient) ListFollowers(ctx context.Context, accountID, pageToken string, pageSize int) (*FollowerPage, error) {
	q := url.Values{}
	q.Set("max_results", strconv.Itoa(pageSize))
	q.Set("user.fields", "id,username,name")
	if pageToken != "" {
		q.Set("pagination_token", pageToken)
	}

	var payload struct {
		Data []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"data"`
		Meta struct {
			NextToken string `json:"next_token"`
		} `json:"meta"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(accountID)+"/followers", q, &payload); err != nil {
		return nil, err
	}

	page := &FollowerPage{NextToken: payload.Meta.NextToken}
	for _, u := range payload.Data {
		page.Accounts = append(page.Accounts, Account{
			ID:          u.ID,
			Handle:      u.Username,
			DisplayName: u.Name,
		})
	}
	return page, nil
}

// VerifyCredentials implements Client.
func (c *HTTPClient) VerifyCredentials(ctx context.Context) (*Account, error) {
	var payload struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/users/me", url.Values{}, &payload); err != nil {
		return nil, err
	}
	return &Account{
		ID:          payload.Data.ID,
		Handle:      payload.Data.Username,
		DisplayName: payload.Data.Name,
	}, nil
}

// RecentMentions implements Client.
func (c *HTTPClient) RecentMentions(ctx context.Context, accountID, sinceID string) ([]Mention, error) {
	q := url.Values{}
	q.Set("tweet.fields", "author_id,in_reply_to_user_id,text")
	q.Set("expansions", "author_id")
	if sinceID != "" {
		q.Set("since_id", sinceID)
	}

	var payload struct {
		Data []struct {
			ID              string `json:"id"`
			AuthorID        string `json:"author_id"`
			Text            string `json:"text"`
			InReplyToUserID string `json:"in_reply_to_user_id"`
		} `json:"data"`
		Includes struct {
			Users []struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			} `json:"users"`
		} `json:"includes"`
	}
	if err := c.get(ctx, "/users/"+url.PathEscape(accountID)+"/mentions", q, &payload); err != nil {
		return nil, err
	}

	handleByID := make(map[string]string, len(payload.Includes.Users))
	for _, u := range payload.Includes.Users {
		handleByID[u.ID] = u.Username
	}

	// The platform returns newest first; reverse so callers process in
	// chronological order.
	mentions := make([]Mention, 0, len(payload.Data))
	for i := len(payload.Data) - 1; i >= 0; i-- {
		d := payload.Data[i]
		mentions = append(mentions, Mention{
			PostID:          d.ID,
			AuthorID:        d.AuthorID,
			AuthorHandle:    handleByID[d.AuthorID],
			Text:            d.Text,
			RepliedToUserID: d.InReplyToUserID,
		})
	}
	return mentions, nil
}

// get performs one rate-limited GET and maps HTTP status codes onto the
// closed error variants.
func (c *HTTPClient) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: path, Err: err}
	}

	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: path, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrPrivate
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfterHint(resp)}
	default:
		return &TransportError{Op: path, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: path, Err: fmt.Errorf("decoding response: %w", err)}
	}

	log.Debug().Str("path", path).Msg("Platform call completed")
	return nil
}

// retryAfterHint extracts the platform's retry-after hint from a 429
// response. Supports both delta-seconds and the x-rate-limit-reset epoch
// header.
func retryAfterHint(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	if v := resp.Header.Get("x-rate-limit-reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			if until := time.Until(time.Unix(epoch, 0)); until > 0 {
				return until
			}
		}
	}
	return 0
}

package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewHTTPClient(HTTPConfig{
		BaseURL:        srv.URL,
		BearerToken:    "test-token",
		RequestTimeout: 5 * time.Second,
		CallsPerSecond: 1000,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestStatusCodeMapping(t *testing.T) {
	for _, tc := range []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrPrivate},
		{http.StatusForbidden, ErrPrivate},
		{http.StatusNotFound, ErrNotFound},
	} {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})

		_, err := client.ListFollowers(context.Background(), "target-1", "", 100)
		if !errors.Is(err, tc.want) {
			t.Errorf("Status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestRateLimitRetryAfterSeconds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "42")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListFollowers(context.Background(), "target-1", "", 100)

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter != 42*time.Second {
		t.Errorf("Expected 42s hint, got %v", rl.RetryAfter)
	}
}

func TestRateLimitResetEpochHint(t *testing.T) {
	reset := time.Now().Add(2 * time.Minute).Unix()
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(reset, 10))
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListFollowers(context.Background(), "target-1", "", 100)

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter <= 0 || rl.RetryAfter > 2*time.Minute {
		t.Errorf("Epoch hint should land within the reset window, got %v", rl.RetryAfter)
	}
}

func TestRateLimitWithoutHint(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.ListFollowers(context.Background(), "target-1", "", 100)

	var rl *RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("Expected RateLimitError, got %v", err)
	}
	if rl.RetryAfter != 0 {
		t.Errorf("No headers should mean no hint, got %v", rl.RetryAfter)
	}
}

func TestUnexpectedStatusIsTransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	_, err := client.ListFollowers(context.Background(), "target-1", "", 100)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TransportError, got %v", err)
	}
}

func TestListFollowersParsesPageAndAuth(t *testing.T) {
	var gotAuth, gotPath string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		fmt.Fprint(w, `{
			"data": [
				{"id": "1", "username": "solana", "name": "Solana"},
				{"id": "2", "username": "phantom", "name": "Phantom"}
			],
			"meta": {"next_token": "page-2"}
		}`)
	})

	page, err := client.ListFollowers(context.Background(), "target-1", "", 100)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Expected bearer auth header, got %q", gotAuth)
	}
	if gotPath != "/users/target-1/followers" {
		t.Errorf("Unexpected path %q", gotPath)
	}
	if len(page.Accounts) != 2 || page.Accounts[0].Handle != "solana" || page.Accounts[1].ID != "2" {
		t.Errorf("Unexpected page contents: %+v", page.Accounts)
	}
	if page.NextToken != "page-2" {
		t.Errorf("Expected next token page-2, got %q", page.NextToken)
	}
}

func TestResolveHandlesReportsPartialFailures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"data": [{"id": "1", "username": "solana", "name": "Solana"}],
			"errors": [{"value": "ghost_handle", "detail": "Could not find user"}]
		}`)
	})

	res, err := client.ResolveHandles(context.Background(), []string{"solana", "ghost_handle"})
	if err != nil {
		t.Fatalf("Per-item failures must not fail the batch: %v", err)
	}
	if len(res.Resolved) != 1 || res.Resolved[0].ID != "1" {
		t.Errorf("Unexpected resolutions: %+v", res.Resolved)
	}
	if len(res.Failed) != 1 || res.Failed[0].Handle != "ghost_handle" {
		t.Errorf("Unexpected failures: %+v", res.Failed)
	}
}

func TestRecentMentionsChronologicalOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// Platform delivers newest first.
		fmt.Fprint(w, `{
			"data": [
				{"id": "3", "author_id": "a-2", "text": "newest"},
				{"id": "2", "author_id": "a-1", "text": "middle", "in_reply_to_user_id": "t-9"},
				{"id": "1", "author_id": "a-1", "text": "oldest"}
			],
			"includes": {"users": [{"id": "a-1", "username": "alice"}]}
		}`)
	})

	mentions, err := client.RecentMentions(context.Background(), "me", "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(mentions) != 3 {
		t.Fatalf("Expected 3 mentions, got %d", len(mentions))
	}
	if mentions[0].PostID != "1" || mentions[2].PostID != "3" {
		t.Errorf("Mentions should be oldest first: %+v", mentions)
	}
	if mentions[1].RepliedToUserID != "t-9" {
		t.Errorf("Reply target lost: %+v", mentions[1])
	}
	if mentions[0].AuthorHandle != "alice" {
		t.Errorf("Author handle not joined from includes: %+v", mentions[0])
	}
}

func TestNewHTTPClientRequiresCredentials(t *testing.T) {
	if _, err := NewHTTPClient(HTTPConfig{BearerToken: "t"}); err == nil {
		t.Error("Expected error for missing base URL")
	}
	if _, err := NewHTTPClient(HTTPConfig{BaseURL: "https://example.com"}); err == nil {
		t.Error("Expected error for missing bearer token")
	}
}

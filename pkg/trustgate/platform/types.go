package platform

import (
	"errors"
	"fmt"
	"time"
)

// Account is a platform account with all optional fields resolved at the
// boundary. DisplayName is empty when the platform omits it.
type Account struct {
	ID          string `json:"id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}

// FollowerPage is one page of a paginated follower listing. An empty
// NextToken means there are no further pages.
type FollowerPage struct {
	Accounts  []Account `json:"accounts"`
	NextToken string    `json:"next_token"`
}

// ResolveFailure records a handle that could not be resolved in a batch
// lookup, with the platform-reported reason.
type ResolveFailure struct {
	Handle string `json:"handle"`
	Reason string `json:"reason"`
}

// ResolveResult is the outcome of a batch handle lookup. Per-item failures
// do not abort the batch; they are reported alongside the resolved accounts.
type ResolveResult struct {
	Resolved []Account        `json:"resolved"`
	Failed   []ResolveFailure `json:"failed"`
}

// Mention is a post that mentions the monitored account. RepliedToUserID is
// set when the mention is a reply, identifying the account being replied to.
type Mention struct {
	PostID          string `json:"post_id"`
	AuthorID        string `json:"author_id"`
	AuthorHandle    string `json:"author_handle"`
	Text            string `json:"text"`
	RepliedToUserID string `json:"replied_to_user_id"`
}

// Sentinel conditions a caller must handle explicitly. These replace the
// broad exception hierarchies of typical platform SDKs with a closed set of
// variants: Ok | Private | NotFound | RateLimited | TransportError.
var (
	// ErrPrivate indicates the target account is private/protected and its
	// follower list cannot be read.
	ErrPrivate = errors.New("account is private")

	// ErrNotFound indicates the target account does not exist.
	ErrNotFound = errors.New("account not found")
)

// RateLimitError indicates the platform rejected a call for exceeding its
// rate ceiling. RetryAfter carries the platform's hint when provided; zero
// means no hint was given.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
	}
	return "rate limited"
}

// TransportError wraps a generic network or protocol failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Package trustlist loads the externally curated list of trusted account
// handles and categorizes them into a fixed taxonomy.
//
// The remote document is loosely structured: a literal array-like block of
// double-quoted handles, possibly surrounded by comments and other text.
// Only the bracket-delimited span is required to contain valid quoted
// tokens.
package trustlist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
)

// FetchError indicates the trust list could not be retrieved or parsed.
// It is fatal to trust-feature activation only; the rest of the system
// degrades to running without trust validation.
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trust list fetch failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("trust list fetch failed: %s", e.Reason)
}

func (e *FetchError) Unwrap() error { return e.Err }

var quotedToken = regexp.MustCompile(`"([^"]+)"`)

// Set is the loaded trusted-account set. Handles preserves first-seen order
// for determinism; membership checks are case-insensitive. A Set is
// immutable once loaded.
type Set struct {
	Handles []string
	index   map[string]struct{}
}

// Contains reports whether the handle is in the set, ignoring case.
func (s *Set) Contains(handle string) bool {
	_, ok := s.index[strings.ToLower(handle)]
	return ok
}

// Len returns the number of distinct handles in the set.
func (s *Set) Len() int { return len(s.Handles) }

// CategoryCounts tallies the set by category.
func (s *Set) CategoryCounts() map[string]int {
	counts := make(map[string]int)
	for _, h := range s.Handles {
		counts[Categorize(h)]++
	}
	return counts
}

// Source fetches the trusted-account list from a remote URL.
type Source struct {
	URL  string
	http *retryablehttp.Client
}

// NewSource creates a Source for the given URL.
func NewSource(url string) *Source {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil
	return &Source{URL: url, http: rc}
}

// Load retrieves and parses the remote document into a Set.
func (s *Source) Load(ctx context.Context) (*Set, error) {
	log.Info().Str("url", s.URL).Msg("Fetching trusted accounts list")

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, &FetchError{Reason: "building request", Err: err}
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, &FetchError{Reason: "network error", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Reason: "reading body", Err: err}
	}

	set, err := Parse(string(body))
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("handles", set.Len()).
		Interface("categories", set.CategoryCounts()).
		Msg("Loaded trusted accounts list")
	return set, nil
}

// Parse extracts the trusted handles from a raw document. The span from the
// first '[' to the last ']' is scanned for double-quoted tokens; empty
// tokens are dropped and duplicates collapse case-insensitively, keeping
// the first occurrence.
func Parse(content string) (*Set, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || end < start {
		return nil, &FetchError{Reason: "no list brackets found in document"}
	}

	span := content[start : end+1]
	matches := quotedToken.FindAllStringSubmatch(span, -1)

	set := &Set{index: make(map[string]struct{})}
	for _, m := range matches {
		handle := strings.TrimSpace(m[1])
		if handle == "" {
			continue
		}
		key := strings.ToLower(handle)
		if _, seen := set.index[key]; seen {
			continue
		}
		set.index[key] = struct{}{}
		set.Handles = append(set.Handles, handle)
	}

	if len(set.Handles) == 0 {
		return nil, &FetchError{Reason: "no valid handles found in list"}
	}
	return set, nil
}

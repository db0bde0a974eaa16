package trust

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solwatch/trustgate/pkg/trustgate/identity"
	"github.com/solwatch/trustgate/pkg/trustgate/platform"
	"github.com/solwatch/trustgate/pkg/trustgate/trustlist"
)

const (
	// DefaultCallBudget caps paginated-fetch calls per session.
	DefaultCallBudget = 20

	// DefaultQuickCallBudget is the reduced ceiling for quick checks.
	DefaultQuickCallBudget = 5

	// DefaultSampleCap bounds how many followers one validation examines.
	// Checking the full follower graph of large accounts is
	// cost-prohibitive under the call budget, so the validator accepts a
	// bounded sample in platform delivery order as a proxy for the full
	// set. Results are therefore order-dependent; this is a documented
	// cost/coverage trade-off, not a bug.
	DefaultSampleCap = 1000

	// DefaultPageSize is the follower page size requested per call.
	DefaultPageSize = 1000

	// DefaultMinRequired is the trusted-follower threshold for validation.
	DefaultMinRequired = 2
)

// Session holds the shared state of one validation run: the resolved
// identity cache, the trusted set, and the call-budget counter consumed
// sequentially by every validation in the run. It replaces ambient mutable
// singletons so multiple sessions can run in test isolation; it is not
// safe for concurrent use.
type Session struct {
	client   platform.Client
	cache    *identity.Cache
	set      *trustlist.Set
	resolver *identity.Resolver

	cachePath     string
	cacheValidity time.Duration

	budget      int
	quickBudget int
	used        int
	sampleCap   int
	pageSize    int

	emitters []MetricsEmitter
}

// SessionOption adjusts a Session.
type SessionOption func(*Session)

// WithCallBudget sets the hard ceiling on paginated-fetch calls.
func WithCallBudget(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.budget = n
		}
	}
}

// WithQuickCallBudget sets the reduced ceiling used by QuickCheck.
func WithQuickCallBudget(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.quickBudget = n
		}
	}
}

// WithSampleCap bounds the number of followers examined per validation.
func WithSampleCap(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.sampleCap = n
		}
	}
}

// WithPageSize sets the follower page size requested per call.
func WithPageSize(n int) SessionOption {
	return func(s *Session) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithLazyResolution lets the session resolve the identity cache on first
// use when it was constructed without one.
func WithLazyResolution(r *identity.Resolver, cachePath string, validity time.Duration) SessionOption {
	return func(s *Session) {
		s.resolver = r
		s.cachePath = cachePath
		s.cacheValidity = validity
	}
}

// NewSession creates a validation session over the given platform client,
// identity cache, and trusted set. cache may be nil when lazy resolution
// is configured.
func NewSession(client platform.Client, cache *identity.Cache, set *trustlist.Set, opts ...SessionOption) *Session {
	s := &Session{
		client:      client,
		cache:       cache,
		set:         set,
		budget:      DefaultCallBudget,
		quickBudget: DefaultQuickCallBudget,
		sampleCap:   DefaultSampleCap,
		pageSize:    DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterEmitter adds a metrics emitter notified after each validation.
func (s *Session) RegisterEmitter(e MetricsEmitter) {
	s.emitters = append(s.emitters, e)
}

// CallsUsed returns how many budget units the session has consumed.
func (s *Session) CallsUsed() int { return s.used }

// CallsRemaining returns how many budget units remain.
func (s *Session) CallsRemaining() int {
	if s.used >= s.budget {
		return 0
	}
	return s.budget - s.used
}

// Validate checks whether the target account is followed by at least
// minRequired trusted accounts. All failures are downgraded into the
// verdict's Error field; Validate never returns an error.
func (s *Session) Validate(ctx context.Context, targetID string, minRequired int) *Verdict {
	if minRequired <= 0 {
		minRequired = DefaultMinRequired
	}

	v := s.validate(ctx, targetID, minRequired)
	s.notify(v)
	return v
}

func (s *Session) validate(ctx context.Context, targetID string, minRequired int) *Verdict {
	log.Info().Str("target_id", targetID).Msg("Starting trusted followers check")

	if err := s.ensureIdentities(ctx); err != nil {
		log.Error().Err(err).Msg("Trusted identities unavailable")
		return errorVerdict(targetID, minRequired, "Failed to resolve trusted accounts")
	}

	if s.used >= s.budget {
		log.Warn().Int("budget", s.budget).Msg("API call limit reached before validation")
		return errorVerdict(targetID, minRequired, "API call limit reached")
	}

	v := &Verdict{
		TargetID:          targetID,
		MinRequired:       minRequired,
		CategoryBreakdown: map[string]int{},
		Timestamp:         time.Now().UTC(),
	}

	pageToken := ""
	retried := false
	for {
		if s.used >= s.budget {
			log.Warn().Msg("API call limit reached during follower check")
			break
		}

		pageSize := s.pageSize
		if remaining := s.sampleCap - v.CheckedFollowerCount; remaining < pageSize {
			pageSize = remaining
		}

		page, err := s.client.ListFollowers(ctx, targetID, pageToken, pageSize)
		s.used++
		if err != nil {
			if reason, terminal := terminalReason(err); terminal {
				log.Warn().Str("target_id", targetID).Str("reason", reason).Msg("Follower check terminated")
				if v.CheckedFollowerCount == 0 {
					return errorVerdict(targetID, minRequired, reason)
				}
				break
			}
			// Transport failure: one implicit retry of the same page while
			// budget allows, then keep whatever was collected.
			if !retried && s.used < s.budget {
				retried = true
				log.Warn().Err(err).Msg("Follower page fetch failed, retrying once")
				continue
			}
			if v.CheckedFollowerCount == 0 {
				return errorVerdict(targetID, minRequired, "Error checking followers: "+err.Error())
			}
			log.Warn().Err(err).Msg("Follower pagination aborted, scoring partial sample")
			break
		}
		v.APICallsUsed++

		for _, follower := range page.Accounts {
			v.CheckedFollowerCount++
			handle := strings.ToLower(follower.Handle)
			if _, trusted := s.cache.HandleToID[handle]; !trusted {
				continue
			}

			category := trustlist.Categorize(follower.Handle)
			v.TrustedFollowers = append(v.TrustedFollowers, TrustedFollower{
				Handle:      follower.Handle,
				ID:          follower.ID,
				DisplayName: follower.DisplayName,
				Category:    category,
			})
			v.CategoryBreakdown[category]++
			log.Info().Str("handle", follower.Handle).Str("category", category).Msg("Found trusted follower")
		}

		if page.NextToken == "" || v.CheckedFollowerCount >= s.sampleCap {
			break
		}
		pageToken = page.NextToken
	}

	v.TrustedFollowerCount = len(v.TrustedFollowers)
	v.IsValidated = v.TrustedFollowerCount >= minRequired
	v.ValidationStrength = validationStrength(v.TrustedFollowerCount, v.CategoryBreakdown)
	v.TrustScore = CalculateScore(v.TrustedFollowers)

	log.Info().
		Str("target_id", targetID).
		Bool("validated", v.IsValidated).
		Int("trusted_followers", v.TrustedFollowerCount).
		Int("checked", v.CheckedFollowerCount).
		Int("api_calls", v.APICallsUsed).
		Int("strength", v.ValidationStrength).
		Str("trust_level", v.TrustScore.TrustLevel).
		Msg("Trust validation complete")
	return v
}

// QuickCheck runs a validation with a reduced call ceiling and a threshold
// of one trusted follower, for cheap pre-screening.
func (s *Session) QuickCheck(ctx context.Context, targetID string) *Verdict {
	originalBudget := s.budget
	if capped := s.used + s.quickBudget; capped < s.budget {
		s.budget = capped
	}
	v := s.Validate(ctx, targetID, 1)
	s.budget = originalBudget
	return v
}

// ensureIdentities lazily resolves the identity cache when the session was
// created without one.
func (s *Session) ensureIdentities(ctx context.Context) error {
	if s.cache != nil && len(s.cache.HandleToID) > 0 {
		return nil
	}
	if s.resolver == nil || s.set == nil {
		return errors.New("identity cache is empty and no resolver is configured")
	}

	cache, err := s.resolver.EnsureCache(ctx, s.cachePath, s.set.Handles, s.cacheValidity)
	if err != nil {
		return err
	}
	s.cache = cache
	return nil
}

func (s *Session) notify(v *Verdict) {
	for _, e := range s.emitters {
		e.EmitValidation(v)
		e.EmitBudget(s.used, s.budget)
	}
}

// terminalReason maps platform error variants that end a validation to the
// verdict error string they produce.
func terminalReason(err error) (string, bool) {
	switch {
	case errors.Is(err, platform.ErrPrivate):
		return "Target account is private", true
	case errors.Is(err, platform.ErrNotFound):
		return "Target account not found", true
	}
	var rl *platform.RateLimitError
	if errors.As(err, &rl) {
		return "Rate limited during follower check", true
	}
	return "", false
}

// MetricsEmitter receives validation outcomes for instrumentation.
type MetricsEmitter interface {
	// EmitValidation is called once per completed validation, including
	// failed attempts.
	EmitValidation(v *Verdict)

	// EmitBudget reports session budget consumption after a validation.
	EmitBudget(used, budget int)
}

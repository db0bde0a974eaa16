// Package telemetry exposes Prometheus metrics for the validation engine:
// validation outcomes, trusted-follower discovery, and call-budget
// consumption.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/solwatch/trustgate/pkg/trustgate/trust"
)

// MetricsConfig contains configuration for the metrics system.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	Namespace string `mapstructure:"namespace"`

	// RateLimit caps scrape requests per minute. Zero disables limiting.
	RateLimit int `mapstructure:"rate_limit"`
}

// DefaultConfig returns a default configuration for the telemetry system.
func DefaultConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Endpoint:  ":9090",
		Namespace: "trustgate",
		RateLimit: 60,
	}
}

// Manager owns the Prometheus registry and the scrape server. It implements
// trust.MetricsEmitter so sessions can report outcomes directly.
type Manager struct {
	mu     sync.Mutex
	config MetricsConfig
	reg    *prometheus.Registry
	server *http.Server

	validationsTotal       prometheus.Counter
	validationsFailed      prometheus.Counter
	trustedFollowersFound  prometheus.Counter
	apiCallsTotal          prometheus.Counter
	budgetRemaining        prometheus.Gauge
	trustedAccountsLoaded  prometheus.Gauge
	validationStrengthHist prometheus.Histogram
}

var _ trust.MetricsEmitter = (*Manager)(nil)

// NewManager creates a telemetry manager with the given configuration.
func NewManager(config MetricsConfig) *Manager {
	m := &Manager{config: config}
	if !config.Enabled {
		return m
	}

	reg := prometheus.NewRegistry()
	m.reg = reg

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m.validationsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "validations_total",
		Help:      "Total number of trust validations attempted",
	})

	m.validationsFailed = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "validations_failed_total",
		Help:      "Total number of validations that ended in an error verdict",
	})

	m.trustedFollowersFound = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "trusted_followers_found_total",
		Help:      "Total number of trusted followers discovered across validations",
	})

	m.apiCallsTotal = promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: config.Namespace,
		Name:      "api_calls_total",
		Help:      "Total number of platform API calls spent on follower checks",
	})

	m.budgetRemaining = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Name:      "budget_remaining",
		Help:      "API calls remaining in the current session budget",
	})

	m.trustedAccountsLoaded = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
		Namespace: config.Namespace,
		Name:      "trusted_accounts_loaded",
		Help:      "Number of trusted accounts in the active curated list",
	})

	m.validationStrengthHist = promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Namespace: config.Namespace,
		Name:      "validation_strength",
		Help:      "Distribution of validation strength scores (0-100)",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	return m
}

// EmitValidation records the outcome of one validation.
func (m *Manager) EmitValidation(v *trust.Verdict) {
	if !m.config.Enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.validationsTotal.Inc()
	if v.Error != "" {
		m.validationsFailed.Inc()
		return
	}
	m.trustedFollowersFound.Add(float64(v.TrustedFollowerCount))
	m.apiCallsTotal.Add(float64(v.APICallsUsed))
	m.validationStrengthHist.Observe(float64(v.ValidationStrength))
}

// EmitBudget reports remaining session budget after a validation.
func (m *Manager) EmitBudget(used, budget int) {
	if !m.config.Enabled {
		return
	}

	remaining := budget - used
	if remaining < 0 {
		remaining = 0
	}
	m.budgetRemaining.Set(float64(remaining))
}

// SetTrustedAccountsLoaded records the size of the active trusted list.
func (m *Manager) SetTrustedAccountsLoaded(n int) {
	if !m.config.Enabled {
		return
	}
	m.trustedAccountsLoaded.Set(float64(n))
}

// Start launches the scrape server. It returns immediately; serve errors are
// logged.
func (m *Manager) Start() error {
	if !m.config.Enabled {
		log.Info().Msg("Prometheus metrics are disabled")
		return nil
	}

	handler := m.rateLimitedHandler(promhttp.HandlerFor(
		m.reg,
		promhttp.HandlerOpts{EnableOpenMetrics: true},
	))

	m.server = &http.Server{
		Addr:    m.config.Endpoint,
		Handler: handler,
	}

	go func() {
		log.Info().Str("addr", m.config.Endpoint).Msg("Starting metrics server")
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return nil
}

// Stop gracefully shuts down the scrape server.
func (m *Manager) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	log.Info().Msg("Shutting down metrics server")
	if err := m.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down metrics server: %w", err)
	}
	return nil
}

// rateLimitedHandler wraps the scrape handler with a request rate limit.
func (m *Manager) rateLimitedHandler(next http.Handler) http.Handler {
	var limiter *rate.Limiter
	if m.config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(m.config.RateLimit)/60.0), m.config.RateLimit)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.Allow() {
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

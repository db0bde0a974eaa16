// Package watch polls an account's mentions for a trigger phrase and runs a
// trust validation against the account each triggering mention points at.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/solwatch/trustgate/pkg/trustgate/platform"
	"github.com/solwatch/trustgate/pkg/trustgate/report"
	"github.com/solwatch/trustgate/pkg/trustgate/trust"
)

// DefaultPollInterval spaces mention polls far enough apart for constrained
// API tiers.
const DefaultPollInterval = 5 * time.Minute

// Config holds watcher settings.
type Config struct {
	// AccountID is the authenticated account whose mentions are polled.
	AccountID string `mapstructure:"account_id"`

	// TriggerPhrase selects mentions to act on, matched case-insensitively
	// as a substring of the mention text.
	TriggerPhrase string `mapstructure:"trigger_phrase"`

	// StateFile persists the newest processed mention ID across restarts.
	StateFile string `mapstructure:"state_file"`

	PollInterval time.Duration `mapstructure:"poll_interval"`
	MinRequired  int           `mapstructure:"min_required"`
}

// Watcher runs the mention poll loop. Poll errors are logged and the loop
// continues; only context cancellation stops it.
type Watcher struct {
	client  platform.Client
	session *trust.Session
	config  Config

	lastSeenID string

	// onReport receives each rendered verdict. Defaults to logging.
	onReport func(handle, rendered string)
}

// New creates a Watcher over the given client and validation session.
func New(client platform.Client, session *trust.Session, config Config) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.MinRequired <= 0 {
		config.MinRequired = trust.DefaultMinRequired
	}
	w := &Watcher{
		client:  client,
		session: session,
		config:  config,
	}
	w.onReport = func(handle, rendered string) {
		log.Info().Str("handle", handle).Msg("Validation report\n" + rendered)
	}
	w.lastSeenID = w.readLastSeenID()
	return w
}

// SetReportFunc overrides the default report sink.
func (w *Watcher) SetReportFunc(fn func(handle, rendered string)) {
	if fn != nil {
		w.onReport = fn
	}
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	log.Info().
		Str("account_id", w.config.AccountID).
		Str("trigger", w.config.TriggerPhrase).
		Dur("interval", w.config.PollInterval).
		Msg("Starting mention watcher")

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Mention watcher stopped")
			return ctx.Err()
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll fetches new mentions once and validates every triggering mention.
func (w *Watcher) Poll(ctx context.Context) {
	mentions, err := w.client.RecentMentions(ctx, w.config.AccountID, w.lastSeenID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch mentions")
		return
	}
	if len(mentions) == 0 {
		log.Debug().Msg("No new mentions")
		return
	}

	// Mentions arrive oldest first; the last one is the newest.
	newest := mentions[len(mentions)-1].PostID
	trigger := strings.ToLower(w.config.TriggerPhrase)

	for _, mention := range mentions {
		if trigger != "" && !strings.Contains(strings.ToLower(mention.Text), trigger) {
			continue
		}
		w.handleMention(ctx, mention)
	}

	w.lastSeenID = newest
	w.writeLastSeenID(newest)
}

// handleMention validates the account the mention points at: the replied-to
// account when the trigger is a reply, otherwise the mention's author.
func (w *Watcher) handleMention(ctx context.Context, mention platform.Mention) {
	targetID := mention.RepliedToUserID
	handle := ""
	if targetID != "" {
		log.Info().Str("post_id", mention.PostID).Str("target_id", targetID).Msg("Reply mention found")
	} else {
		targetID = mention.AuthorID
		handle = mention.AuthorHandle
		log.Info().Str("post_id", mention.PostID).Str("target_id", targetID).Msg("Direct mention found")
	}

	if handle == "" {
		handle = targetID
	}
	// A nil session means the trust feature failed to activate; the watcher
	// still acknowledges mentions with the no-data form.
	if w.session == nil {
		w.onReport(handle, report.FormatVerdict(nil, handle))
		return
	}
	v := w.session.Validate(ctx, targetID, w.config.MinRequired)
	w.onReport(handle, report.FormatVerdict(v, handle))
}

// LastSeenID returns the newest processed mention ID.
func (w *Watcher) LastSeenID() string { return w.lastSeenID }

func (w *Watcher) readLastSeenID() string {
	if w.config.StateFile == "" {
		return ""
	}
	data, err := os.ReadFile(w.config.StateFile)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", w.config.StateFile).Msg("Failed to read last seen ID")
		}
		return ""
	}
	id := strings.TrimSpace(string(data))
	if id != "" {
		log.Info().Str("last_seen_id", id).Msg("Resuming from saved mention ID")
	}
	return id
}

func (w *Watcher) writeLastSeenID(id string) {
	if w.config.StateFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(w.config.StateFile), 0o755); err != nil {
		log.Warn().Err(err).Str("path", w.config.StateFile).Msg("Failed to create state directory")
		return
	}
	if err := os.WriteFile(w.config.StateFile, []byte(id), 0o644); err != nil {
		log.Warn().Err(err).Str("path", w.config.StateFile).Msg("Failed to save last seen ID")
	}
}

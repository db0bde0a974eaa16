package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/rs/zerolog/log"
	cli "github.com/urfave/cli/v2"

	"github.com/solwatch/trustgate/pkg/trustgate/config"
	"github.com/solwatch/trustgate/pkg/trustgate/identity"
	"github.com/solwatch/trustgate/pkg/trustgate/platform"
	"github.com/solwatch/trustgate/pkg/trustgate/report"
	"github.com/solwatch/trustgate/pkg/trustgate/telemetry"
	"github.com/solwatch/trustgate/pkg/trustgate/trust"
	"github.com/solwatch/trustgate/pkg/trustgate/trustlist"
	"github.com/solwatch/trustgate/pkg/trustgate/watch"
)

func main() {
	app := &cli.App{
		Name:  "trustgate",
		Usage: "cross-validates social accounts against a curated trusted-accounts list",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to config file",
				EnvVars: []string{"TRUSTGATE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "validate one account by handle",
				ArgsUsage: "<handle>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "min-required",
						Usage: "trusted followers required for validation (0 uses config)",
					},
					&cli.BoolFlag{
						Name:  "quick",
						Usage: "run a reduced-budget quick check",
					},
				},
				Action: runValidate,
			},
			{
				Name:   "status",
				Usage:  "show trusted list, identity cache, and credential status",
				Action: runStatus,
			},
			{
				Name:   "watch",
				Usage:  "poll mentions and validate accounts on the trigger phrase",
				Action: runWatch,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("trustgate failed")
	}
}

// setup loads config, initializes logging, and builds the platform client.
func setup(c *cli.Context) (*config.Config, *platform.HTTPClient, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if err := config.SetupLogging(&cfg.Logging); err != nil {
		return nil, nil, err
	}

	client, err := platform.NewHTTPClient(cfg.Platform)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

// buildSession loads the trusted list and wires a validation session with
// lazy identity resolution and metrics.
func buildSession(ctx context.Context, cfg *config.Config, client platform.Client, metrics *telemetry.Manager) (*trust.Session, error) {
	if cfg.TrustList.URL == "" {
		return nil, fmt.Errorf("trust_list.url is not configured")
	}

	set, err := trustlist.NewSource(cfg.TrustList.URL).Load(ctx)
	if err != nil {
		return nil, err
	}
	metrics.SetTrustedAccountsLoaded(set.Len())

	resolver := identity.NewResolver(client,
		identity.WithBatchSize(cfg.Identity.BatchSize),
		identity.WithBatchDelay(cfg.Identity.BatchDelay),
		identity.WithRateLimitWait(cfg.Identity.RateLimitWait),
	)

	session := trust.NewSession(client, nil, set,
		trust.WithCallBudget(cfg.Validator.CallBudget),
		trust.WithQuickCallBudget(cfg.Validator.QuickCallBudget),
		trust.WithSampleCap(cfg.Validator.SampleCap),
		trust.WithPageSize(cfg.Validator.PageSize),
		trust.WithLazyResolution(resolver, cfg.Identity.CachePath, cfg.Identity.CacheValidity),
	)
	session.RegisterEmitter(metrics)
	return session, nil
}

func runValidate(c *cli.Context) error {
	handle := c.Args().First()
	if handle == "" {
		return fmt.Errorf("usage: trustgate validate <handle>")
	}

	cfg, client, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.NewManager(cfg.Telemetry)
	session, err := buildSession(ctx, cfg, client, metrics)
	if err != nil {
		return err
	}

	res, err := client.ResolveHandles(ctx, []string{handle})
	if err != nil {
		return fmt.Errorf("resolving %s: %w", handle, err)
	}
	if len(res.Resolved) == 0 {
		return fmt.Errorf("handle %s could not be resolved", handle)
	}
	target := res.Resolved[0]

	minRequired := c.Int("min-required")
	if minRequired <= 0 {
		minRequired = cfg.Validator.MinRequired
	}

	var v *trust.Verdict
	if c.Bool("quick") {
		v = session.QuickCheck(ctx, target.ID)
	} else {
		v = session.Validate(ctx, target.ID, minRequired)
	}

	fmt.Println(report.FormatVerdict(v, target.Handle))
	return nil
}

func runStatus(c *cli.Context) error {
	cfg, client, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	me, err := client.VerifyCredentials(ctx)
	if err != nil {
		fmt.Println("Credentials: INVALID")
		log.Warn().Err(err).Msg("Credential verification failed")
	} else {
		fmt.Printf("Credentials: OK (@%s)\n", me.Handle)
	}

	if cfg.TrustList.URL != "" {
		set, err := trustlist.NewSource(cfg.TrustList.URL).Load(ctx)
		if err != nil {
			fmt.Printf("Trusted list: UNAVAILABLE (%v)\n", err)
		} else {
			fmt.Printf("Trusted list: %d accounts\n", set.Len())
			for _, entry := range set.Handles[:minInt(5, len(set.Handles))] {
				fmt.Printf("  - @%s (%s)\n", entry, trustlist.Categorize(entry))
			}
		}
	} else {
		fmt.Println("Trusted list: not configured")
	}

	cache, err := identity.LoadCache(cfg.Identity.CachePath)
	switch {
	case err != nil:
		fmt.Printf("Identity cache: ERROR (%v)\n", err)
	case cache == nil:
		fmt.Println("Identity cache: absent")
	case cache.IsValid(time.Now(), cfg.Identity.CacheValidity):
		fmt.Printf("Identity cache: valid (%d resolved, created %s)\n",
			cache.SuccessfulResolutions, cache.CreatedAt.Format(time.RFC3339))
	default:
		fmt.Printf("Identity cache: stale (created %s)\n", cache.CreatedAt.Format(time.RFC3339))
	}

	return nil
}

func runWatch(c *cli.Context) error {
	cfg, client, err := setup(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.NewManager(cfg.Telemetry)
	if err := metrics.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Stop(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics shutdown failed")
		}
	}()

	// A trust-list failure disables validation but not the watcher itself.
	session, err := buildSession(ctx, cfg, client, metrics)
	if err != nil {
		log.Warn().Err(err).Msg("Trust validation unavailable, watching without it")
		session = nil
	}

	watchCfg := cfg.Watch
	if watchCfg.AccountID == "" {
		me, err := client.VerifyCredentials(ctx)
		if err != nil {
			return fmt.Errorf("watch.account_id not set and credential lookup failed: %w", err)
		}
		watchCfg.AccountID = me.ID
	}
	if watchCfg.MinRequired <= 0 {
		watchCfg.MinRequired = cfg.Validator.MinRequired
	}

	w := watch.New(client, session, watchCfg)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info().Msg("Watcher stopped, goodbye!")
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

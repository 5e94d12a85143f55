package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"calwatch/internal/config"
	"calwatch/internal/engine"
	"calwatch/internal/feed"
	"calwatch/internal/models"
	"calwatch/internal/notify"
	"calwatch/internal/store"
	"calwatch/internal/syncer"

	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	app := &cli.App{
		Name:  "calwatch",
		Usage: "Watch a calendar feed and announce created, updated and deleted events.",
		Commands: []*cli.Command{
			authCommand(),
			syncCommand(),
			migrateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token for google:// feeds.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.LogLevel, cfg.Environment)
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := feed.GetOAuthConfigForAuthFlow(cfg.Google.ClientID, cfg.Google.ClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := feed.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			if accountName == "" {
				return fmt.Errorf("account name must not be empty")
			}

			tokenFile, err := feed.SaveToken(accountName, token)
			if err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}
			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)

			g, err := feed.NewGoogle(c.Context, logger, "primary", feed.GoogleOptions{
				ClientID:     cfg.Google.ClientID,
				ClientSecret: cfg.Google.ClientSecret,
				Account:      accountName,
			}, time.UTC)
			if err != nil {
				return err
			}
			calendars, err := g.DiscoverCalendars(c.Context)
			if err != nil {
				logger.Warn("Could not list calendars", "error", err)
				return nil
			}
			fmt.Println("Available calendars (use as google://<id>):")
			for id, name := range calendars {
				fmt.Printf("  %s\t%s\n", id, name)
			}
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create the Postgres schema used by the event store.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.LogLevel, cfg.Environment)
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL environment variable not set")
			}

			db, err := store.OpenPostgres(c.Context, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(c.Context); err != nil {
				return err
			}
			logger.Info("Schema is up to date.")
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run the feed reconciliation process.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run the sync cycle once and exit."},
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be announced without touching the store."},
			&cli.IntFlag{Name: "watch", Usage: "Run sync every N seconds. Overrides INTERVAL."},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := config.NewLogger(cfg.LogLevel, cfg.Environment)
			dryRun := c.Bool("dry-run")
			if err := cfg.ValidateSync(dryRun); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if dryRun {
				logger.Info("Performing a dry run. No notifications will be sent and the store is not modified.")
			}

			source, err := feed.New(ctx, feed.Options{
				URL:      cfg.FeedURL,
				Location: cfg.Location(),
				CalDAV: feed.CalDAVOptions{
					Username: cfg.CalDAV.Username,
					Password: cfg.CalDAV.Password,
					Calendar: cfg.CalDAV.Calendar,
				},
				Google: feed.GoogleOptions{
					ClientID:     cfg.Google.ClientID,
					ClientSecret: cfg.Google.ClientSecret,
					Account:      cfg.Google.Account,
				},
				Logger: logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create feed: %w", err)
			}

			st, closeStore, err := openStore(ctx, logger, cfg, dryRun)
			if err != nil {
				return err
			}
			defer closeStore()

			dispatcher, err := newDispatcher(logger, cfg, dryRun)
			if err != nil {
				return err
			}

			filter, err := engine.NameFilter(cfg.FilterRegex)
			if err != nil {
				return fmt.Errorf("invalid FILTER_REGEX: %w", err)
			}

			s := syncer.NewSyncer(logger, source, engine.New(logger, st, dispatcher), syncer.Options{
				Group:       cfg.Group,
				FeedURL:     cfg.FeedURL,
				Filter:      filter,
				CacheWindow: cfg.CacheWindow,
			})

			if c.Bool("once") {
				logger.Info("Running a single sync cycle.", "feed", models.RedactURL(cfg.FeedURL), "group", cfg.Group)
				if err := s.Sync(ctx); err != nil {
					return fmt.Errorf("single sync cycle failed: %w", err)
				}
				return nil
			}

			interval := cfg.Interval
			if c.IsSet("watch") {
				interval = time.Duration(c.Int("watch")) * time.Second
			}
			if interval <= 0 {
				return fmt.Errorf("watch interval must be positive")
			}
			return s.Run(ctx, interval)
		},
	}
}

var openPostgres = store.OpenPostgres

// openStore returns the Postgres store, creating its schema when missing. A
// dry run works on an in-memory copy of the group, or on an empty one when no
// database is configured.
func openStore(ctx context.Context, logger *slog.Logger, cfg *config.Config, dryRun bool) (engine.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		if !dryRun {
			return nil, nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
		logger.Warn("DATABASE_URL not set, dry run starts from an empty snapshot")
		return store.NewMemory(), func() {}, nil
	}

	db, err := openPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}
	if !dryRun {
		if err := db.Migrate(ctx); err != nil {
			closeDB()
			return nil, nil, err
		}
		return db, closeDB, nil
	}

	mem := store.NewMemory()
	if err := mem.Copy(ctx, db, cfg.Group); err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to load snapshot for dry run: %w", err)
	}
	closeDB()
	return mem, func() {}, nil
}

func newDispatcher(logger *slog.Logger, cfg *config.Config, dryRun bool) (*notify.Dispatcher, error) {
	d := notify.NewDispatcher(logger)
	if dryRun {
		d.Add("log:", notify.NewLogSender(logger))
		return d, nil
	}

	opts := notify.Options{
		SES: notify.SESConfig{
			Region:          cfg.SES.Region,
			AccessKeyID:     cfg.SES.AccessKeyID,
			SecretAccessKey: cfg.SES.SecretAccessKey,
			FromAddress:     cfg.SES.FromAddress,
			FromName:        cfg.SES.FromName,
		},
		CalDAV: notify.CalDAVCredentials{
			Username: cfg.CalDAV.Username,
			Password: cfg.CalDAV.Password,
		},
		Logger: logger,
	}
	for _, raw := range cfg.Endpoints {
		sender, err := notify.NewSender(raw, opts)
		if err != nil {
			return nil, fmt.Errorf("invalid endpoint %s: %w", models.RedactURL(raw), err)
		}
		d.Add(models.RedactURL(raw), sender)
	}
	logger.Info("Initialized notification endpoints.", "count", d.Len())
	return d, nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rmoreira/hearing-sync/internal/auth"
	"github.com/rmoreira/hearing-sync/internal/browser"
	"github.com/rmoreira/hearing-sync/internal/config"
	"github.com/rmoreira/hearing-sync/internal/court"
	"github.com/rmoreira/hearing-sync/internal/crypto"
	"github.com/rmoreira/hearing-sync/internal/hearing"
	"github.com/rmoreira/hearing-sync/internal/logger"
	"github.com/rmoreira/hearing-sync/internal/retry"
	"github.com/rmoreira/hearing-sync/internal/runner"
	"github.com/rmoreira/hearing-sync/internal/sink"
	calendarsink "github.com/rmoreira/hearing-sync/internal/sink/calendar"
	emailsink "github.com/rmoreira/hearing-sync/internal/sink/email"
	sheetssink "github.com/rmoreira/hearing-sync/internal/sink/sheets"
	"github.com/rmoreira/hearing-sync/internal/snapshot"
	"github.com/rmoreira/hearing-sync/internal/token"
)

const (
	ExitSuccess = 0
	ExitError   = 1
	ExitChanges = 2
)

var (
	flagDataDir string
	flagFormat  string
	flagDryRun  bool
	flagVerbose bool
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hearing-sync",
		Short: "Sync labor court hearing schedules to spreadsheet, calendar and email",
		Long: `Fetches the scheduled hearings from the PJe portals, diffs them against
the previous sync and pushes additions, reschedules and cancellations to the
configured spreadsheet, calendar and mailbox.

Portals protected by two-factor login open a browser window for you to finish
the login; the captured session is cached and reused on later runs.`,
		RunE: runSync,
	}

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory for snapshots (overrides DATA_DIR)")
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
	cmd.Flags().StringVar(&flagFormat, "format", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Print the changes without touching any destination")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

// setup loads config and builds the pieces every subcommand needs.
func setup() (*config.Config, token.Cache, *auth.Authenticator, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, os.Stderr))

	cache, err := token.NewFileCache(cfg.TokenCacheFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening token cache: %w", err)
	}
	cache.WithEncryptor(crypto.NewEncryptor(cfg.TokenCachePassphrase))

	newBrowser := func() (auth.Browser, error) {
		if cfg.BrowserCommand == "" {
			return nil, fmt.Errorf("browser_command is not configured; interactive login is unavailable")
		}
		return browser.Start(context.Background(), cfg.BrowserCommand)
	}

	authenticator := auth.New(cache, newBrowser, auth.Options{
		Timeout:      cfg.LoginTimeout,
		PollInterval: cfg.LoginPollInterval,
		TokenTTL:     cfg.TokenTTL(),
	}).WithProbe(func(ctx context.Context, tok token.Token) bool {
		system, ok := systemByID(tok.SystemID)
		if !ok {
			return false
		}
		client, err := court.NewClient(system, tok)
		if err != nil {
			return false
		}
		return client.ValidateSession(ctx)
	})

	return cfg, cache, authenticator, nil
}

func systemByID(id string) (court.System, bool) {
	for _, s := range court.DefaultSystems() {
		if strings.EqualFold(s.ID, id) {
			return s, true
		}
	}
	return court.System{}, false
}

// buildSinks assembles the destinations enabled by the configuration. With
// --dry-run the only destination is the printer.
func buildSinks(ctx context.Context, cfg *config.Config) ([]sink.Sink, runner.PreviousSource, error) {
	if flagDryRun {
		return []sink.Sink{sink.NewDryRun(os.Stdout)}, nil, nil
	}

	var sinks []sink.Sink
	var previous runner.PreviousSource

	if cfg.SpreadsheetID != "" {
		s, err := sheetssink.New(ctx, cfg.ServiceAccountFile, cfg.SpreadsheetID, cfg.ChangedSpreadsheetID)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
		previous = s
	}
	if cfg.CalendarID != "" {
		c, err := calendarsink.New(ctx, cfg.ServiceAccountFile, cfg.CalendarID)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, c)
	}
	if cfg.EmailSender != "" {
		sinks = append(sinks, emailsink.New(cfg.SMTPHost, cfg.SMTPPort, cfg.EmailSender, cfg.EmailPassword, cfg.EmailRecipients))
	}

	if len(sinks) == 0 {
		return nil, nil, fmt.Errorf("no destination configured; set spreadsheet_id, calendar_id or email_sender, or pass --dry-run")
	}
	return sinks, previous, nil
}

// runSync is the main command logic.
func runSync(cmd *cobra.Command, args []string) error {
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}

	cfg, cache, authenticator, err := setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	sinks, previous, err := buildSinks(ctx, cfg)
	if err != nil {
		return err
	}

	store, err := snapshot.New(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("initializing snapshot store: %w", err)
	}

	coord := &runner.Coordinator{
		Systems: court.DefaultSystems(),
		Auth:    authenticator,
		NewFetcher: func(system court.System, tok token.Token) (runner.Fetcher, error) {
			client, err := court.NewClient(system, tok)
			if err != nil {
				return nil, err
			}
			return clientFetcher{client}, nil
		},
		Cache:     cache,
		Previous:  previous,
		Snapshots: store,
		Sinks:     sinks,
		Policy:    retry.DefaultPolicy(),
		Log:       logger.Default(),
		Now:       time.Now,
	}

	report, runErr := coord.Run(ctx)
	if err := WriteReport(os.Stdout, report, runErr, format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if runErr != nil {
		notifyFailure(sinks, report)
	}

	switch {
	case runErr != nil:
		os.Exit(ExitError)
	case report.Added+report.Modified+report.Removed > 0:
		os.Exit(ExitChanges)
	default:
		os.Exit(ExitSuccess)
	}
	return nil
}

// notifyFailure emails the office about a failed run so a missed sync never
// goes unnoticed. Best effort; delivery problems are only logged.
func notifyFailure(sinks []sink.Sink, report *runner.Report) {
	for _, s := range sinks {
		mailer, ok := s.(*emailsink.Sink)
		if !ok {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "A sincronização iniciada em %s terminou com erros:\n\n",
			report.StartedAt.Format("02/01/2006 15:04"))
		for _, sys := range report.Systems {
			if sys.Err != nil {
				fmt.Fprintf(&b, "  - %s: %v\n", sys.SystemID, sys.Err)
			}
		}
		for _, sk := range report.Sinks {
			if sk.Err != nil {
				fmt.Fprintf(&b, "  - destino %s: %v\n", sk.Name, sk.Err)
			}
		}
		b.WriteString("\nVerifique o sistema antes da próxima audiência.\n")
		if err := mailer.Notice("Aviso do Sistema Automatizado: falha na sincronização", b.String()); err != nil {
			logger.Warn("Failed to send failure notice", logger.Fields{"error": err.Error()})
		}
	}
}

// clientFetcher adapts the court client to the runner's Fetcher interface.
type clientFetcher struct {
	client *court.Client
}

func (f clientFetcher) Fetch(ctx context.Context, now time.Time, futureYears int) ([]hearing.Record, error) {
	return f.client.FetchWindow(ctx, now, futureYears)
}

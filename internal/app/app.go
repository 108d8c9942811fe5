package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"turnpp/internal/config"
	"turnpp/internal/domain"
	"turnpp/internal/httpx"
	"turnpp/internal/integrations/jira"
	slackbot "turnpp/internal/integrations/slack"
	"turnpp/internal/logging"
	"turnpp/internal/naming"
	"turnpp/internal/pipeline"
	"turnpp/internal/quality"
	"turnpp/internal/retention"
	"turnpp/internal/schedule"
	"turnpp/internal/storage/sqlite"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ErrAlreadyRan is returned when today's run already completed.
var ErrAlreadyRan = errors.New("a run already completed today")

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	console    bool
	stdin      io.Reader
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{stdin: os.Stdin}
	root := &cobra.Command{
		Use:   "turnpp",
		Short: "Quality-check, archive and close out Turn delivery tickets",
		Long: `turnpp searches Jira for Turn parent tickets and their children, checks
each child's id/upc file pair, comments the results on the ticket, zips the
pair and labels the ticket as processed.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().BoolVar(&opts.console, "console", false, "mirror log output to the console")

	root.AddCommand(
		newRunCommand(opts),
		newScheduleCommand(opts),
		newPurgeCommand(opts),
		newHistoryCommand(opts),
	)
	return root
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every eligible ticket once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			console := opts.wantConsole(cmd)

			db, err := sqlite.InitDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			runTime := time.Now().In(cfg.Location)
			summary, err := runOnce(cmd.Context(), cfg, db, console, force, runTime, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), pipeline.FormatSummary(summary))
			if summary.Aborted {
				return errors.New("run aborted, see log for details")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "run even if a run already completed today")
	return cmd
}

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			console := opts.wantConsole(cmd)

			db, err := sqlite.InitDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			logger, path, closeLog, err := logging.New(logOptions(cfg, cfg.AppName+"_scheduler", console), time.Now().In(cfg.Location))
			if err != nil {
				return err
			}
			defer closeLog()
			fmt.Fprintf(cmd.OutOrStdout(), "Scheduler log: %s\n", path)
			log := logger.Sugar()

			s, err := schedule.New(cfg.Schedule, cfg.Location, log)
			if err != nil {
				return err
			}
			return s.Run(cmd.Context(), func(ctx context.Context, at time.Time) {
				summary, err := runOnce(ctx, cfg, db, console, false, at, cmd.OutOrStdout())
				if err != nil {
					log.Errorw("scheduled run skipped", "at", at, "error", err)
					return
				}
				log.Infow("scheduled run finished", "at", at, "archived", summary.Archived, "errors", len(summary.Errors), "aborted", summary.Aborted)
			})
		},
	}
}

func newPurgeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete log files older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			rep, err := retention.Sweep(cfg.LogPath, cfg.LogRetentionDays, time.Now().In(cfg.Location), nil)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d files, removed %d, freed %s\n", rep.Scanned, len(rep.Removed), humanize.Bytes(rep.Freed))
			for _, f := range rep.Failures {
				fmt.Fprintf(out, "  failed: %v\n", f)
			}
			return nil
		},
	}
}

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent ticket outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			db, err := sqlite.InitDB(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			outcomes, err := sqlite.NewLedger(db).RecentOutcomes(limit)
			if err != nil {
				return err
			}
			if len(outcomes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No outcomes recorded yet.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tPARENT\tTICKET\tOUTCOME\tDETAIL")
			for _, o := range outcomes {
				detail := o.Detail
				if detail == "" {
					detail = o.ArchivePath
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					humanize.Time(o.RecordedAt), o.ParentKey, o.TicketKey, o.Outcome, detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of outcomes to show")
	return cmd
}

// wantConsole uses --console when given, otherwise asks on an interactive
// terminal. Non-interactive runs log to file only.
func (o *rootOptions) wantConsole(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("console") {
		return o.console
	}
	f, ok := o.stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}
	return logging.AskConsole(o.stdin, cmd.OutOrStdout())
}

func logOptions(cfg config.Config, appName string, console bool) logging.Options {
	return logging.Options{Dir: cfg.LogPath, AppName: appName, Level: cfg.LogLevel, Console: console}
}

// runOnce guards against a second run on the same day, opens the run's log
// file and drives one pipeline run.
func runOnce(ctx context.Context, cfg config.Config, db *sql.DB, console, force bool, runTime time.Time, out io.Writer) (domain.RunSummary, error) {
	var summary domain.RunSummary
	ledger := sqlite.NewLedger(db)
	runDate := runTime.Format("20060102")
	if !force {
		done, err := ledger.HasCompletedRun(runDate)
		if err != nil {
			return summary, err
		}
		if done {
			return summary, errors.Wrapf(ErrAlreadyRan, "%s (use --force to run again)", runDate)
		}
	}

	logger, path, closeLog, err := logging.New(logOptions(cfg, cfg.AppName, console), runTime)
	if err != nil {
		return summary, err
	}
	defer closeLog()
	fmt.Fprintf(out, "Run log: %s\n", path)
	log := logger.Sugar()

	appliedHTTPTimeout := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Infow("config loaded",
		"app", cfg.AppName,
		"timezone", cfg.Timezone,
		"projects", cfg.JiraProjects,
		"storage_root", cfg.StorageRoot,
		"required_tags", cfg.RequiredTags,
		"slack", cfg.SlackConfigured(),
		"external_http_timeout", appliedHTTPTimeout.String(),
	)

	runner, err := newRunner(cfg, log, ledger)
	if err != nil {
		log.Errorw("run setup failed", "error", err)
		return summary, err
	}
	return runner.Run(ctx, runTime), nil
}

func newRunner(cfg config.Config, log *zap.SugaredLogger, ledger pipeline.Ledger) (*pipeline.Runner, error) {
	nameRules, err := naming.LoadRules(cfg.NameRulesPath)
	if err != nil {
		return nil, err
	}
	columnRules, err := quality.LoadColumnRules(cfg.ColumnRulesPath)
	if err != nil {
		return nil, err
	}

	runner := &pipeline.Runner{
		Settings: pipeline.SettingsFromConfig(cfg),
		Source:   jira.New(cfg, log.Named("jira")),
		Checker:  quality.NewChecker(columnRules, log.Named("quality")),
		Names:    naming.New(nameRules),
		Ledger:   ledger,
		Log:      log.Named("pipeline"),
	}
	if n := slackbot.New(cfg, log.Named("slack")); n != nil {
		runner.Notifier = n
	}
	return runner, nil
}

// Package cmd provides the command-line interface for querying the
// local alert database and driving syncs without the HTTP server.
package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vigia/config"
	"vigia/core"
	"vigia/service"
	"vigia/storage"
	"vigia/syncer"
	"vigia/wazuh"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags shared by the query subcommands.
var (
	outputJSON bool
	outputYAML bool
	noColor    bool
	quiet      bool
)

const defaultTimeout = 5 * time.Minute

// NewQueryCmd creates the root query command with all subcommands.
func NewQueryCmd() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Query the local alert database",
		Long: `Query the locally cached Wazuh alerts, triage statistics, and sync
history directly, without going through the HTTP API.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	queryCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	queryCmd.PersistentFlags().BoolVar(&outputYAML, "yaml", false, "Output in YAML format")
	queryCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	queryCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	queryCmd.AddCommand(newAlertsCmd())
	queryCmd.AddCommand(newStatsCmd())
	queryCmd.AddCommand(newSyncCmd())
	queryCmd.AddCommand(newLastSyncCmd())

	return queryCmd
}

// initService opens the database and wires the service layer the same
// way the server does.
func initService() (*service.AlertService, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// CLI results go to stdout; keep the log channel silent.
	logger := zap.NewNop().Sugar()

	db, err := storage.NewSQLite(cfg.GetSQLitePath(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	alerts := storage.NewSQLiteAlertStorage(db, logger)
	annotations := storage.NewSQLiteAnnotationStorage(db, logger)
	registry := storage.NewSQLiteRegistryStorage(db, logger)
	syncLogs := storage.NewSQLiteSyncLogStorage(db, logger)

	esClient := wazuh.NewESClient(cfg, logger)
	sync := syncer.NewSyncer(esClient, alerts, syncLogs, logger)

	svc := service.NewAlertService(alerts, annotations, registry, syncLogs, sync, cfg.AlertCacheSize, logger)
	cleanup := func() { db.Close() }

	return svc, cleanup, nil
}

// newAlertsCmd creates the 'alerts' subcommand.
func newAlertsCmd() *cobra.Command {
	var (
		limit  int
		offset int
		level  int
		agent  string
		search string
		start  string
		end    string
	)

	cmd := &cobra.Command{
		Use:     "alerts",
		Aliases: []string{"ls"},
		Short:   "List cached alerts",
		Long:    "Display the locally cached alerts, newest first, with the same filters the API accepts.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := initService()
			if err != nil {
				return err
			}
			defer cleanup()

			filter := core.AlertFilter{
				AgentName: agent,
				Search:    search,
			}
			if cmd.Flags().Changed("level") {
				filter.Level = &level
			}
			if ts, err := parseDateFlag(start); err != nil {
				return err
			} else if ts != nil {
				filter.StartDate = ts
			}
			if ts, err := parseDateFlag(end); err != nil {
				return err
			} else if ts != nil {
				filter.EndDate = ts
			}

			alerts, total, err := svc.ListAlerts(filter, limit, offset)
			if err != nil {
				return fmt.Errorf("failed to query alerts: %w", err)
			}

			if outputJSON {
				return outputAsJSON(map[string]interface{}{"alerts": alerts, "total": total})
			}
			if outputYAML {
				return outputAsYAML(map[string]interface{}{"alerts": alerts, "total": total})
			}

			renderAlertsTable(alerts, total, offset)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", core.DefaultQueryLimit, "Maximum alerts to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of alerts to skip")
	cmd.Flags().IntVar(&level, "level", 0, "Exact rule level")
	cmd.Flags().StringVar(&agent, "agent", "", "Agent name substring")
	cmd.Flags().StringVar(&search, "search", "", "Description substring")
	cmd.Flags().StringVar(&start, "start", "", "Start date (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", "", "End date (RFC3339 or YYYY-MM-DD)")

	return cmd
}

// newStatsCmd creates the 'stats' subcommand.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show triage statistics",
		Long:  "Display alert totals grouped by triage status.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := initService()
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := svc.Stats()
			if err != nil {
				return fmt.Errorf("failed to compute stats: %w", err)
			}

			if outputJSON {
				return outputAsJSON(stats)
			}
			if outputYAML {
				return outputAsYAML(stats)
			}

			renderStats(stats)
			return nil
		},
	}
}

// newSyncCmd creates the 'sync' subcommand.
func newSyncCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch fresh alerts from Elasticsearch",
		Long:  "Run one sync against the remote index and store the fetched alerts locally.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
			defer cancel()

			svc, cleanup, err := initService()
			if err != nil {
				return err
			}
			defer cleanup()

			var s *spinner.Spinner
			if !quiet && !outputJSON && !outputYAML {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = " Syncing alerts..."
				s.Start()
			}

			result, err := svc.Sync(ctx, limit)
			if s != nil {
				s.Stop()
			}
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			if outputJSON {
				return outputAsJSON(result)
			}
			if outputYAML {
				return outputAsYAML(result)
			}

			if !quiet {
				successColor.Printf("✓ Synced %d alerts (remote total: %d)\n", result.Count, result.Total)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Batch size (0 uses the configured default)")

	return cmd
}

// newLastSyncCmd creates the 'last-sync' subcommand.
func newLastSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "last-sync",
		Short: "Show the most recent sync attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cleanup, err := initService()
			if err != nil {
				return err
			}
			defer cleanup()

			last, err := svc.LastSync()
			if err != nil {
				return fmt.Errorf("failed to load sync log: %w", err)
			}

			if outputJSON {
				return outputAsJSON(last)
			}
			if outputYAML {
				return outputAsYAML(last)
			}

			renderSyncLog(last)
			return nil
		},
	}
}

// parseDateFlag parses a date flag value; empty means unset.
func parseDateFlag(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q (want RFC3339 or YYYY-MM-DD)", raw)
}

// levelLabel renders a rule level with severity coloring.
func levelLabel(level int) string {
	label := strconv.Itoa(level)
	switch {
	case level >= 12:
		return errorColor.Sprint(label)
	case level >= 7:
		return warningColor.Sprint(label)
	default:
		return label
	}
}

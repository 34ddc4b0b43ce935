package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jengzang/trailbloom-backend/internal/analysis"
	"github.com/jengzang/trailbloom-backend/internal/app"
	"github.com/jengzang/trailbloom-backend/internal/config"
	"github.com/jengzang/trailbloom-backend/internal/database"
	"github.com/jengzang/trailbloom-backend/internal/logging"
	"github.com/jengzang/trailbloom-backend/internal/models"
)

type globalFlags struct {
	configFile string
	logLevel   string
}

func rootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "trailbloom",
		Short:         "Wildflower observation counts along hiking trails",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to a config file (default ./trailbloom.yaml if present)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Override log.level")

	root.AddCommand(
		serveCommand(flags),
		migrateCommand(flags),
		refreshCommand(flags),
		importTrailsCommand(flags),
		ingestObservationsCommand(flags),
	)
	return root
}

// setup loads configuration, installs the logger and builds the app
func setup(cmd *cobra.Command, flags *globalFlags) (*app.App, error) {
	cfg, err := config.Load(flags.configFile)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	logger, err := logging.Init(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	return app.New(cmd.Context(), cfg, logger)
}

func serveCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(cmd.Context())
		},
	}
}

func migrateCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile)
			if err != nil {
				return err
			}
			if _, err := logging.Init(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
				return err
			}
			db, err := database.Open(cmd.Context(), database.Config{Driver: cfg.DB.Driver, DSN: cfg.DB.DSN})
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := database.NewMigrationManager(db).RunMigrations(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
			return nil
		},
	}
}

func refreshCommand(flags *globalFlags) *cobra.Command {
	var (
		mode    string
		regions []string
		from    string
		to      string
		runDate string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Recompute trail observation counts",
		Example: `  trailbloom refresh --mode incremental
  trailbloom refresh --mode backfill --region CA --from 2024-03-01 --to 2024-06-30`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := buildRunRequest(mode, regions, from, to, runDate)
			if err != nil {
				return err
			}

			a, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Refresh.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := printJSON(cmd, result); err != nil {
				return err
			}
			if result.Status != analysis.RunSuccess {
				return fmt.Errorf("refresh %s, failed regions: %v", result.Status, result.FailedRegions())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "incremental", "incremental or backfill")
	cmd.Flags().StringSliceVar(&regions, "region", nil, "Region codes (default all configured)")
	cmd.Flags().StringVar(&from, "from", "", "Backfill start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Backfill end date, YYYY-MM-DD")
	cmd.Flags().StringVar(&runDate, "run-date", "", "Incremental run date, YYYY-MM-DD (default today UTC)")
	return cmd
}

func buildRunRequest(mode string, regions []string, from, to, runDate string) (analysis.RunRequest, error) {
	m, err := analysis.ParseMode(mode)
	if err != nil {
		return analysis.RunRequest{}, err
	}
	req := analysis.RunRequest{Mode: m, Regions: regions, RunAt: time.Now().UTC()}

	if m == analysis.ModeBackfill {
		if req.Range, err = parseRange(from, to); err != nil {
			return req, err
		}
		return req, nil
	}
	if runDate != "" {
		if req.Range.End, err = models.ParseDate(runDate); err != nil {
			return req, err
		}
	}
	return req, nil
}

func parseRange(from, to string) (models.DateRange, error) {
	var (
		r   models.DateRange
		err error
	)
	if r.Start, err = models.ParseDate(from); err != nil {
		return r, fmt.Errorf("--from: %w", err)
	}
	if r.End, err = models.ParseDate(to); err != nil {
		return r, fmt.Errorf("--to: %w", err)
	}
	return r, r.Validate()
}

func importTrailsCommand(flags *globalFlags) *cobra.Command {
	var (
		region    string
		file      string
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "import-trails",
		Short: "Replace a region's trails from a GeoJSON FeatureCollection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", file, err)
			}
			defer f.Close()

			a, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.TrailImport.Import(cmd.Context(), region, f, chunkSize)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "Region code")
	cmd.Flags().StringVar(&file, "file", "", "GeoJSON file")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 200, "Trails per stored chunk")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func ingestObservationsCommand(flags *globalFlags) *cobra.Command {
	var (
		region string
		from   string
		to     string
	)

	cmd := &cobra.Command{
		Use:   "ingest-observations",
		Short: "Fetch observations from the provider into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dates, err := parseRange(from, to)
			if err != nil {
				return err
			}

			a, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Observations.Ingest(cmd.Context(), region, dates)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "Region code")
	cmd.Flags().StringVar(&from, "from", "", "Start date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "End date, YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("region")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

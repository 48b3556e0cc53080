// Package main provides lautctl, the operator CLI: schema migrations, the
// module catalogue, offline scoring and backups.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lautcoach/internal/config"
	"lautcoach/internal/database"
	"lautcoach/internal/models"
	"lautcoach/internal/repository"
	"lautcoach/internal/scoring"
	"lautcoach/internal/service"
	"lautcoach/migrations"
)

var (
	configFile string

	scoreText bool
	scoreWord string

	exportOutput string

	importClear bool
	importYes   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lautctl",
		Short:        "Operate the lautcoach pronunciation service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML or TOML config file (default: $CONFIG_FILE)")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newModulesCmd())
	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	return rootCmd
}

func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg := config.Load()
	path := configFile
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// openDB connects and brings the schema up to date.
func openDB(ctx context.Context) (*database.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	db, err := database.InitializeWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if cfg.MigrationsPath != "" {
		err = db.RunMigrations(ctx, cfg.MigrationsPath)
	} else {
		err = db.RunMigrationsFS(ctx, migrations.FS)
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("schema is up to date"))
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the built-in sound module catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			n, err := service.SeedModules(cmd.Context(), repository.NewModuleRepository(db), slog.Default())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("seeded %d modules", n)))
			return nil
		},
	}
}

func newModulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "modules [difficulty]",
		Short: "List the sound modules in the database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var difficulty models.DifficultyLevel
			if len(args) == 1 {
				difficulty = models.DifficultyLevel(args[0])
				if !difficulty.Valid() {
					return fmt.Errorf("unknown difficulty %q", args[0])
				}
			}
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			modules, err := repository.NewModuleRepository(db).List(cmd.Context(), difficulty)
			if err != nil {
				return err
			}
			renderModules(cmd.OutOrStdout(), modules)
			return nil
		},
	}
}

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <target-ipa> <observed>",
		Short: "Score an attempt offline, without feedback",
		Long: "Score an observed IPA string against a target IPA string. With --text the\n" +
			"observed argument is a transcription and --word names the expected word.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if scoreText && scoreWord == "" {
				return fmt.Errorf("--word is required with --text")
			}
			outcome := scoring.Classify(scoring.Attempt{
				Word:          scoreWord,
				TargetIPA:     args[0],
				Observed:      args[1],
				ObservedIsIPA: !scoreText,
			})
			renderOutcome(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
	cmd.Flags().BoolVar(&scoreText, "text", false, "treat the observed argument as a transcription")
	cmd.Flags().StringVar(&scoreWord, "word", "", "expected word for --text scoring")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export modules, sessions and mastery records to JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			outputPath := exportOutput
			if outputPath == "" {
				outputPath = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
			}
			if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
			}

			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := service.NewBackupService(db, slog.Default()).Export(cmd.Context(), outputPath); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			info, err := os.Stat(outputPath)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("exported %s (%.2f MB)", outputPath, float64(info.Size())/1024/1024)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: backup_YYYYMMDD_HHMMSS.json)")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON backup, skipping sessions that already exist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("input file: %w", err)
			}

			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if importClear {
				if !importYes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout()) {
					fmt.Fprintln(cmd.OutOrStdout(), "import cancelled")
					return nil
				}
				if err := clearDatabase(cmd.Context(), db); err != nil {
					return err
				}
			}

			summary, err := service.NewBackupService(db, slog.Default()).Import(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("import failed: %w", err)
			}
			renderImportSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().BoolVar(&importClear, "clear", false, "delete all sessions and mastery records first (destructive)")
	cmd.Flags().BoolVarP(&importYes, "yes", "y", false, "skip the --clear confirmation")
	return cmd
}

func confirm(in io.Reader, out io.Writer) bool {
	fmt.Fprint(out, warnStyle.Render("This deletes all sessions and mastery records.")+" Type 'yes' to confirm: ")
	var answer string
	fmt.Fscanln(in, &answer)
	return strings.TrimSpace(answer) == "yes"
}

// clearDatabase removes learner data. The module catalogue stays, the
// import upserts it.
func clearDatabase(ctx context.Context, db *database.DB) error {
	return db.WithTx(ctx, func(tx *database.Tx) error {
		for _, table := range []string{"mastery_records", "pronunciation_sessions"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear table %s: %w", table, err)
			}
		}
		return nil
	})
}

// Command migrate manages the PostgreSQL schema and seeds partner integrations.
package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uniorder/backend/internal/infrastructure/config"
	"github.com/uniorder/backend/internal/infrastructure/logger"
	"github.com/uniorder/backend/internal/infrastructure/migration"
	"github.com/uniorder/backend/migrations"
)

const defaultMigrationsDir = "migrations"

type cli struct {
	logLevel string
	dir      string

	cfg *config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the UniOrder database schema",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log, err := logger.New(&logger.Config{
				Level:      c.logLevel,
				Format:     "console",
				Output:     "stdout",
				TimeFormat: "2006-01-02 15:04:05",
			})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			c.log = log
			if cmd.Name() == "create" {
				return nil
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			c.cfg = cfg
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.log != nil {
				_ = logger.Sync(c.log)
			}
		},
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: c.withMigrator(func(m *migration.Migrator, _ []string) error {
				return m.Up()
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: c.withMigrator(func(m *migration.Migrator, _ []string) error {
				return m.Down()
			}),
		},
		&cobra.Command{
			Use:   "steps N",
			Short: "Apply N migrations, or roll back when N is negative",
			Args:  cobra.ExactArgs(1),
			RunE: c.withMigrator(func(m *migration.Migrator, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid step count %q: %w", args[0], err)
				}
				return m.Steps(n)
			}),
		},
		&cobra.Command{
			Use:   "goto VERSION",
			Short: "Migrate up or down to VERSION",
			Args:  cobra.ExactArgs(1),
			RunE: c.withMigrator(func(m *migration.Migrator, args []string) error {
				v, err := strconv.ParseUint(args[0], 10, 32)
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return m.GoTo(uint(v))
			}),
		},
		&cobra.Command{
			Use:     "version",
			Aliases: []string{"status"},
			Short:   "Show the current schema version",
			Args:    cobra.NoArgs,
			RunE: c.withMigrator(func(m *migration.Migrator, _ []string) error {
				status, err := m.Status(migrations.FS)
				if err != nil {
					return err
				}
				c.log.Info("Schema status",
					zap.Uint("version", status.Version),
					zap.Bool("dirty", status.Dirty),
					zap.Int("pending", status.Pending),
				)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Args:  cobra.ExactArgs(1),
			RunE: c.withMigrator(func(m *migration.Migrator, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return m.Force(v)
			}),
		},
		c.createCmd(),
		c.seedCmd(),
	)
	return root
}

func (c *cli) createCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Scaffold the next numbered up/down migration pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			file, err := migration.CreateMigration(c.dir, args[0], description)
			if err != nil {
				return err
			}
			c.log.Info("Migration created",
				zap.Uint("version", file.Version),
				zap.String("up", file.UpPath),
				zap.String("down", file.DownPath),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&c.dir, "dir", defaultMigrationsDir, "Directory to write migration files into")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description written into the file header")
	return cmd
}

// withMigrator opens the database, runs fn against the embedded migrations
// and releases everything afterwards
func (c *cli) withMigrator(fn func(m *migration.Migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		if c.cfg.Database.Driver == "sqlite" {
			return fmt.Errorf("sql migrations target postgres; sqlite databases use auto-migrate")
		}
		db, err := sql.Open("postgres", c.cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		m, err := migration.New(db, migrations.FS, c.log)
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				c.log.Warn("Error closing migrator", zap.Error(err))
			}
		}()

		if err := fn(m, args); err != nil {
			c.log.Error("Migration failed", zap.Error(err))
			return err
		}
		return nil
	}
}

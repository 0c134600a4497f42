package client

import (
	"fmt"
	"text/tabwriter"

	config "github.com/mwantia/fieldsync/internal/config/server"
	"github.com/mwantia/fieldsync/pkg/db/migrations"
	"github.com/mwantia/fieldsync/pkg/db/store"
	"github.com/spf13/cobra"
)

func NewDatabaseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the local record store",
		Long:  "Apply, roll back or list the schema migrations of the local record store.",
	}

	cmd.AddCommand(newDatabaseMigrateCommand())
	cmd.AddCommand(newDatabaseRollbackCommand())
	cmd.AddCommand(newDatabaseStatusCommand())

	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(m *migrations.Migrator) error) error {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	s, err := store.NewSQLiteStore(store.SQLiteConfig{Path: cfg.Metadata.SQLite.Path})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Connect(cmd.Context()); err != nil {
		return err
	}

	return fn(migrations.NewMigrator(s.DB()))
}

func newDatabaseMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				return m.Migrate(cmd.Context())
			})
		},
	}
}

func newDatabaseRollbackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last applied migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				return m.Rollback(cmd.Context())
			})
		},
	}
}

func newDatabaseStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *migrations.Migrator) error {
				statuses, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tAPPLIED\tDESCRIPTION")
				for _, st := range statuses {
					fmt.Fprintf(w, "%d\t%t\t%s\n", st.Version, st.Applied, st.Description)
				}
				return w.Flush()
			})
		},
	}
}

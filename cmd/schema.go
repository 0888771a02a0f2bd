package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsxbet/sql-governor/pkg/governor"
	"github.com/nsxbet/sql-governor/pkg/inspector"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Browse live schema objects on a connection",
	Long: `Schema browses what is actually on the server right now, as opposed
to the versions command which reads the stored history.`,
	Example: `  sql-governor schema databases -c staging
  sql-governor schema tables -c staging
  sql-governor schema show -c staging users`,
}

// schemaDatabasesCmd lists the databases visible to the connection user.
var schemaDatabasesCmd = &cobra.Command{
	Use:   "databases",
	Short: "List databases visible on the connection",
	Args:  cobra.NoArgs,
	RunE:  runSchemaDatabases,
}

// schemaTablesCmd lists the tables of one database.
var schemaTablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables in a database",
	Args:  cobra.NoArgs,
	RunE:  runSchemaTables,
}

// schemaShowCmd prints the live definition and structure of one table.
var schemaShowCmd = &cobra.Command{
	Use:   "show <table>",
	Short: "Show the live definition of a table",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchemaShow,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaDatabasesCmd)
	schemaCmd.AddCommand(schemaTablesCmd)
	schemaCmd.AddCommand(schemaShowCmd)

	schemaCmd.PersistentFlags().StringP("connection", "c", "", "connection name from the config (required)")
	schemaCmd.PersistentFlags().StringP("database", "d", "", "database to inspect (default is the connection's database)")
	_ = schemaCmd.MarkPersistentFlagRequired("connection")
}

// resolveSchemaTarget opens the connection and settles which database to
// inspect.
func resolveSchemaTarget(ctx context.Context, g *governor.Governor, cmd *cobra.Command) (*sql.DB, string, error) {
	connection, _ := cmd.Flags().GetString("connection")
	database, _ := cmd.Flags().GetString("database")

	db, err := g.Registry().Resolve(ctx, connection)
	if err != nil {
		return nil, "", err
	}
	if database == "" {
		if database, err = inspector.CurrentDatabase(ctx, db); err != nil {
			return nil, "", err
		}
	}
	return db, database, nil
}

func runSchemaDatabases(cmd *cobra.Command, args []string) error {
	connection, _ := cmd.Flags().GetString("connection")

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		db, err := g.Registry().Resolve(ctx, connection)
		if err != nil {
			return err
		}
		databases, err := inspector.ListDatabases(ctx, db)
		if err != nil {
			return err
		}
		return output(databases, func() error {
			for _, name := range databases {
				fmt.Println(name)
			}
			return nil
		})
	})
}

func runSchemaTables(cmd *cobra.Command, args []string) error {
	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		db, database, err := resolveSchemaTarget(ctx, g, cmd)
		if err != nil {
			return err
		}
		tables, err := inspector.ListTables(ctx, db, database)
		if err != nil {
			return err
		}
		return output(tables, func() error {
			for _, name := range tables {
				fmt.Println(name)
			}
			return nil
		})
	})
}

func runSchemaShow(cmd *cobra.Command, args []string) error {
	table := args[0]

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		db, database, err := resolveSchemaTarget(ctx, g, cmd)
		if err != nil {
			return err
		}
		definition, err := inspector.ShowCreateTable(ctx, db, table)
		if err != nil {
			return err
		}
		structure, err := inspector.GetTableMetadata(ctx, db, database, table)
		if err != nil {
			return err
		}

		live := struct {
			Database   string               `json:"database"`
			Table      string               `json:"table"`
			Definition string               `json:"definition"`
			Structure  *types.TableMetadata `json:"structure"`
		}{database, table, definition, structure}
		return output(live, func() error {
			fmt.Println(definition)
			return nil
		})
	})
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/nsxbet/sql-governor/pkg/governor"
)

// adviseCmd represents the advise command
var adviseCmd = &cobra.Command{
	Use:   "advise [flags] <sql-file | ->",
	Short: "Report the expected online DDL behavior of an ALTER statement",
	Long: `Advise inspects a single ALTER TABLE statement and reports the
expected ALGORITHM and LOCK per sub-operation, plus the most
conservative combination as the headline. High risk marks operations
that rebuild the table or block writes.

The advisory is informational and never blocks anything; execute the
statement with the execute command.`,
	Example: `  sql-governor advise -c staging --sql "ALTER TABLE users ADD COLUMN bio TEXT NULL;"
  sql-governor advise -c staging alter.sql`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAdvise,
}

func init() {
	rootCmd.AddCommand(adviseCmd)

	adviseCmd.Flags().StringP("connection", "c", "", "connection name from the config (required)")
	adviseCmd.Flags().String("sql", "", "inline SQL instead of a file argument")
	_ = adviseCmd.MarkFlagRequired("connection")
}

func runAdvise(cmd *cobra.Command, args []string) error {
	sqlText, err := readSQLInput(cmd, args)
	if err != nil {
		return err
	}
	connection, _ := cmd.Flags().GetString("connection")

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		advisory, err := g.AnalyzeAlter(ctx, connection, sqlText)
		if err != nil {
			return err
		}
		return output(advisory, func() error {
			printAdvisory(advisory, "")
			return nil
		})
	})
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nsxbet/sql-governor/pkg/governor"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// executeCmd represents the execute command
var executeCmd = &cobra.Command{
	Use:   "execute [flags] <sql-file | ->",
	Short: "Execute SQL transactionally on a managed connection",
	Long: `Execute runs every statement in the input on a single session inside
one transaction, in order. The first failure rolls the whole batch back
and the remaining statements are skipped; there is no partial
application. Every attempt is recorded in the execution history and the
audit sink, committed or not.

DDL statements are snapshotted before and after on the same session and
the resulting table structure is versioned, with identical structures
deduplicated by checksum.`,
	Example: `  sql-governor execute -c staging --operator dba@example.com migration.sql
  sql-governor execute -c staging --operator dba@example.com --sql "UPDATE plans SET active = 0 WHERE id = 7;"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExecute,
}

func init() {
	rootCmd.AddCommand(executeCmd)

	executeCmd.Flags().StringP("connection", "c", "", "connection name from the config (required)")
	executeCmd.Flags().String("sql", "", "inline SQL instead of a file argument")
	executeCmd.Flags().String("operator", "", "who is running this batch, recorded in the audit trail (required)")
	executeCmd.Flags().Int("statement-timeout", 0, "per-statement timeout in seconds, overrides the config")
	executeCmd.Flags().Int("batch-timeout", 0, "whole-batch timeout in seconds, overrides the config")
	_ = executeCmd.MarkFlagRequired("connection")
	_ = executeCmd.MarkFlagRequired("operator")
}

func runExecute(cmd *cobra.Command, args []string) error {
	sqlText, err := readSQLInput(cmd, args)
	if err != nil {
		return err
	}
	connection, _ := cmd.Flags().GetString("connection")
	operator, _ := cmd.Flags().GetString("operator")
	statementTimeout, _ := cmd.Flags().GetInt("statement-timeout")
	batchTimeout, _ := cmd.Flags().GetInt("batch-timeout")

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		if statementTimeout > 0 {
			g.Config().StatementTimeoutSeconds = statementTimeout
		}
		if batchTimeout > 0 {
			g.Config().BatchTimeoutSeconds = batchTimeout
		}

		result, err := g.ExecuteBatch(ctx, connection, sqlText, operator)
		if result == nil {
			return err
		}
		if oerr := output(result, func() error { return printBatch(result) }); oerr != nil {
			return oerr
		}
		// A version conflict or a history write failure arrives alongside
		// a truthful result. Surface it after the result is shown.
		if err != nil {
			return err
		}
		if !result.Committed() {
			os.Exit(1)
		}
		return nil
	})
}

func printBatch(result *types.BatchResult) error {
	fmt.Printf("batch %s on %s by %s\n", result.BatchID, result.Connection, result.Operator)
	outcome := fmt.Sprintf("outcome: %s in %s", result.Outcome, result.Elapsed.Round(elapsedPrecision))
	if result.FailureCode != types.Ok {
		outcome += fmt.Sprintf(" (%s)", result.FailureCode)
	}
	fmt.Println(outcome)
	if result.Error != "" {
		fmt.Printf("error: %s\n", result.Error)
	}

	for _, stmt := range result.Statements {
		fmt.Printf("[%d] %-8s %s\n", stmt.Index, stmt.Status, firstLine(stmt.Statement.Text))
		switch {
		case stmt.Error != "":
			fmt.Printf("    %s\n", stmt.Error)
		case len(stmt.Columns) > 0:
			printResultSet(stmt)
		case stmt.Status == types.StatementOutcome_SUCCESS:
			fmt.Printf("    %d row(s) affected in %s\n", stmt.RowsAffected, stmt.Elapsed.Round(elapsedPrecision))
		}
	}

	if len(result.Changes) > 0 {
		fmt.Println("schema changes:")
		for _, change := range result.Changes {
			fmt.Printf("  [%d] %s: %s\n", change.StatementIndex, change.Table, describeVersion(change))
		}
	}
	return nil
}

func printResultSet(stmt *types.StatementOutcome) {
	fmt.Printf("    %s\n", strings.Join(stmt.Columns, " | "))
	for _, row := range stmt.Rows {
		fmt.Printf("    %s\n", strings.Join(row, " | "))
	}
	note := fmt.Sprintf("%d row(s) in %s", len(stmt.Rows), stmt.Elapsed.Round(elapsedPrecision))
	if stmt.Truncated {
		note += ", truncated"
	}
	fmt.Printf("    (%s)\n", note)
}

func describeVersion(change *types.SchemaChange) string {
	if change.Version == 0 {
		return "not versioned"
	}
	if change.Deduplicated {
		return fmt.Sprintf("version %d (reused)", change.Version)
	}
	return fmt.Sprintf("version %d", change.Version)
}

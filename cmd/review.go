package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nsxbet/sql-governor/pkg/governor"
	"github.com/nsxbet/sql-governor/pkg/types"
)

// reviewCmd represents the review command
var reviewCmd = &cobra.Command{
	Use:   "review [flags] <sql-file | ->",
	Short: "Validate SQL against a connection without executing it",
	Long: `Review splits the input into statements and checks each one against
the live engine for syntax and against the current schema for semantic
problems such as missing columns or dangling foreign key references.
ALTER statements are annotated with an online DDL advisory. Nothing is
executed.

The command exits non-zero when any statement is blocked, so it can gate
a migration pipeline.`,
	Example: `  sql-governor review -c staging migration.sql
  cat migration.sql | sql-governor review -c staging -
  sql-governor review -c staging --sql "DELETE FROM users WHERE id = 4;"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringP("connection", "c", "", "connection name from the config (required)")
	reviewCmd.Flags().String("sql", "", "inline SQL instead of a file argument")
	reviewCmd.Flags().Bool("fail-on-warning", false, "exit with a non-zero code when warnings are found")
	_ = reviewCmd.MarkFlagRequired("connection")
}

func runReview(cmd *cobra.Command, args []string) error {
	sqlText, err := readSQLInput(cmd, args)
	if err != nil {
		return err
	}
	connection, _ := cmd.Flags().GetString("connection")
	failOnWarning, _ := cmd.Flags().GetBool("fail-on-warning")

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		result, err := g.Review(ctx, connection, sqlText)
		if err != nil {
			return err
		}
		if err := output(result, func() error { return printReview(result) }); err != nil {
			return err
		}
		if result.HasBlocking() || (failOnWarning && result.HasWarnings()) {
			os.Exit(1)
		}
		return nil
	})
}

func printReview(result *governor.ReviewResult) error {
	for i, review := range result.Statements {
		validation := review.Validation
		fmt.Printf("[%d] %-16s %s\n", i+1, validation.Status, firstLine(validation.Statement.Text))
		if validation.Message != "" {
			fmt.Printf("    %s%s\n", validation.Message, formatPosition(validation.StartPosition))
		}
		for _, violation := range validation.Violations {
			fmt.Printf("    [%s] %s: %s%s\n",
				violation.Severity, violation.Code, violation.Content, formatPosition(violation.StartPosition))
		}
		if review.Advisory != nil {
			printAdvisory(review.Advisory, "    ")
		}
	}
	fmt.Println(result.String())
	return nil
}

// printAdvisory renders an ALTER advisory with its per-operation breakdown.
// Shared between review and advise.
func printAdvisory(advisory *types.AlterAdvisory, indent string) {
	risk := ""
	if advisory.HighRisk {
		risk = "  HIGH RISK"
	}
	fmt.Printf("%sALTER %s: ALGORITHM=%s, LOCK=%s%s\n",
		indent, advisory.Table, advisory.Algorithm, advisory.Lock, risk)
	for _, op := range advisory.Operations {
		fmt.Printf("%s  %-34s %s/%s  %s\n",
			indent, op.Operation, op.Algorithm, op.Lock, op.Rationale)
	}
}

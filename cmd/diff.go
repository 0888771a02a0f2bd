package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nsxbet/sql-governor/pkg/governor"
)

// diffCmd represents the diff command
var diffCmd = &cobra.Command{
	Use:   "diff [flags] <version-a> <version-b>",
	Short: "Compare two stored schema versions of a table",
	Long: `Diff loads two stored versions of a table and reports the structural
changes between them: columns, indexes and foreign keys added, removed
or modified. The default text view shows a summary followed by a
unified diff of the table definitions; --side-by-side switches to a
two-column view.

Requires enable_schema_diff in the config.`,
	Example: `  sql-governor diff -c staging --table users 3 7
  sql-governor diff -c staging --table users --side-by-side 3 7`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringP("connection", "c", "", "connection name from the config (required)")
	diffCmd.Flags().StringP("table", "t", "", "table whose versions to compare (required)")
	diffCmd.Flags().Bool("side-by-side", false, "render the definitions in two columns")
	_ = diffCmd.MarkFlagRequired("connection")
	_ = diffCmd.MarkFlagRequired("table")
}

func runDiff(cmd *cobra.Command, args []string) error {
	versionA, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return errors.Errorf("invalid version %q", args[0])
	}
	versionB, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errors.Errorf("invalid version %q", args[1])
	}
	connection, _ := cmd.Flags().GetString("connection")
	table, _ := cmd.Flags().GetString("table")
	sideBySide, _ := cmd.Flags().GetBool("side-by-side")

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		comparison, err := g.CompareSchemaVersions(ctx, connection, table, versionA, versionB)
		if err != nil {
			return err
		}
		return output(comparison, func() error {
			return printComparison(comparison, sideBySide)
		})
	})
}

func printComparison(comparison *governor.SchemaComparison, sideBySide bool) error {
	from, to := comparison.From, comparison.To
	fmt.Printf("%s: v%d (%s) -> v%d (%s)\n", comparison.Table,
		from.Version, from.CapturedAt.Format("2006-01-02 15:04:05"),
		to.Version, to.CapturedAt.Format("2006-01-02 15:04:05"))

	if comparison.Identical() {
		fmt.Println("no structural changes")
		return nil
	}

	diff := comparison.Diff
	for _, col := range diff.AddedColumns {
		fmt.Printf("  + column %s %s\n", col.Name, col.Type)
	}
	for _, col := range diff.RemovedColumns {
		fmt.Printf("  - column %s\n", col.Name)
	}
	for _, change := range diff.ModifiedColumns {
		fmt.Printf("  ~ column %s: %s\n", change.Name, strings.Join(change.Changes, ", "))
	}
	for _, idx := range diff.AddedIndexes {
		fmt.Printf("  + index %s\n", idx.Name)
	}
	for _, idx := range diff.RemovedIndexes {
		fmt.Printf("  - index %s\n", idx.Name)
	}
	for _, change := range diff.ModifiedIndexes {
		fmt.Printf("  ~ index %s: %s\n", change.Name, strings.Join(change.Changes, ", "))
	}
	for _, fk := range diff.AddedForeignKeys {
		fmt.Printf("  + foreign key %s\n", fk.Name)
	}
	for _, fk := range diff.RemovedForeignKeys {
		fmt.Printf("  - foreign key %s\n", fk.Name)
	}
	for _, change := range diff.ModifiedForeignKeys {
		fmt.Printf("  ~ foreign key %s: %s\n", change.Name, strings.Join(change.Changes, ", "))
	}
	fmt.Println()

	if sideBySide {
		for _, pair := range comparison.SideBySide {
			fmt.Printf("%-46s %s %s\n", pair.Left, pair.Marker, pair.Right)
		}
		return nil
	}
	fmt.Print(comparison.Unified)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nsxbet/sql-governor/pkg/governor"
	"github.com/nsxbet/sql-governor/pkg/store"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [flags]",
	Short: "List recorded statement executions",
	Long: `History lists the per-statement execution records the governor keeps
for every batch, committed or rolled back. Filters combine with AND;
--search matches a substring of the statement text. Records are listed
newest first.`,
	Example: `  sql-governor history -c staging --limit 20
  sql-governor history -c staging --outcome ROLLED_BACK --since 2026-08-01
  sql-governor history --batch 4f1f3c8a-... -o json`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringP("connection", "c", "", "filter by connection name")
	historyCmd.Flags().String("batch", "", "filter by batch id")
	historyCmd.Flags().String("class", "", "filter by statement class (DDL, DML, DQL)")
	historyCmd.Flags().String("kind", "", "filter by statement kind (ALTER, UPDATE, ...)")
	historyCmd.Flags().String("status", "", "filter by statement status (SUCCESS, FAILED, SKIPPED)")
	historyCmd.Flags().String("outcome", "", "filter by batch outcome (COMMITTED, ROLLED_BACK)")
	historyCmd.Flags().String("operator", "", "filter by operator")
	historyCmd.Flags().String("search", "", "filter by statement text substring")
	historyCmd.Flags().String("since", "", "only records at or after this time (2006-01-02 or RFC 3339)")
	historyCmd.Flags().String("until", "", "only records before this time (2006-01-02 or RFC 3339)")
	historyCmd.Flags().Int("limit", 50, "maximum number of records, 0 for all")
}

func runHistory(cmd *cobra.Command, args []string) error {
	filter, err := historyFilter(cmd)
	if err != nil {
		return err
	}

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		records, err := g.Store().ListExecutions(ctx, filter)
		if err != nil {
			return err
		}
		return output(records, func() error { return printHistory(records) })
	})
}

func historyFilter(cmd *cobra.Command) (store.ExecutionFilter, error) {
	flags := cmd.Flags()
	filter := store.ExecutionFilter{}
	filter.Connection, _ = flags.GetString("connection")
	filter.BatchID, _ = flags.GetString("batch")
	filter.Class, _ = flags.GetString("class")
	filter.Kind, _ = flags.GetString("kind")
	filter.Status, _ = flags.GetString("status")
	filter.Outcome, _ = flags.GetString("outcome")
	filter.Operator, _ = flags.GetString("operator")
	filter.Search, _ = flags.GetString("search")
	filter.Limit, _ = flags.GetInt("limit")

	var err error
	if since, _ := flags.GetString("since"); since != "" {
		if filter.Since, err = parseTimeFlag(since); err != nil {
			return filter, err
		}
	}
	if until, _ := flags.GetString("until"); until != "" {
		if filter.Until, err = parseTimeFlag(until); err != nil {
			return filter, err
		}
	}
	return filter, nil
}

func parseTimeFlag(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("invalid time %q, use 2006-01-02 or RFC 3339", value)
}

func printHistory(records []*store.ExecutionRecord) error {
	if len(records) == 0 {
		fmt.Println("no executions recorded")
		return nil
	}
	for _, r := range records {
		line := fmt.Sprintf("%s  %s  %-11s %-8s %-6s %-20s %s",
			r.ExecutedAt.Format("2006-01-02 15:04:05"), shortID(r.BatchID),
			r.Outcome, r.Status, r.Kind, r.Operator, firstLine(r.Statement))
		fmt.Println(line)
		if r.Error != "" {
			fmt.Printf("    %s\n", r.Error)
		}
		for _, change := range r.SchemaChanges {
			fmt.Printf("    %s: %s\n", change.Table, describeVersion(change))
		}
	}
	fmt.Printf("%d record(s)\n", len(records))
	return nil
}

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

// versionsCmd represents the versions command
var versionsCmd = &cobra.Command{
	Use:   "versions [flags]",
	Short: "List stored schema versions of a table",
	Long: `Versions lists the schema versions the governor has captured for a
table on a connection, newest first. Each version carries the structure
checksum and any tags attached to it.`,
	Example: `  sql-governor versions -c staging --table users
  sql-governor versions show -c staging --table users 3
  sql-governor versions tag -c staging --table users 3 approved --by dba@example.com`,
	Args: cobra.NoArgs,
	RunE: runVersions,
}

// versionsShowCmd prints one stored version in full.
var versionsShowCmd = &cobra.Command{
	Use:   "show <version>",
	Short: "Print the stored definition of one schema version",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionsShow,
}

// versionsTagCmd attaches a named tag to a stored version.
var versionsTagCmd = &cobra.Command{
	Use:   "tag <version> <tag>",
	Short: "Attach a named tag to a stored schema version",
	Args:  cobra.ExactArgs(2),
	RunE:  runVersionsTag,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.AddCommand(versionsShowCmd)
	versionsCmd.AddCommand(versionsTagCmd)

	versionsCmd.PersistentFlags().StringP("connection", "c", "", "connection name from the config (required)")
	versionsCmd.PersistentFlags().StringP("table", "t", "", "table whose versions to list (required)")
	_ = versionsCmd.MarkPersistentFlagRequired("connection")
	_ = versionsCmd.MarkPersistentFlagRequired("table")

	versionsTagCmd.Flags().String("by", "", "who is creating the tag")
	versionsTagCmd.Flags().String("memo", "", "free-form note stored with the tag")
}

func runVersions(cmd *cobra.Command, args []string) error {
	connection, _ := cmd.Flags().GetString("connection")
	table, _ := cmd.Flags().GetString("table")

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		versions, err := g.Store().ListVersions(ctx, connection, table)
		if err != nil {
			return err
		}
		return output(versions, func() error {
			if len(versions) == 0 {
				fmt.Printf("no versions stored for %s on %s\n", table, connection)
				return nil
			}
			for _, v := range versions {
				line := fmt.Sprintf("v%-4d %s  checksum %s", v.Version,
					v.CapturedAt.Format("2006-01-02 15:04:05"), shortChecksum(v.Checksum))
				tags, err := g.Store().ListTags(ctx, connection, table, v.Version)
				if err != nil {
					return err
				}
				if len(tags) > 0 {
					names := make([]string, 0, len(tags))
					for _, t := range tags {
						names = append(names, t.Tag)
					}
					line += fmt.Sprintf("  [%s]", strings.Join(names, ", "))
				}
				fmt.Println(line)
			}
			return nil
		})
	})
}

func runVersionsShow(cmd *cobra.Command, args []string) error {
	version, err := parseVersionArg(args[0])
	if err != nil {
		return err
	}
	connection, _ := cmd.Flags().GetString("connection")
	table, _ := cmd.Flags().GetString("table")

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		v, err := g.Store().GetVersion(ctx, connection, table, version)
		if err != nil {
			return err
		}
		return output(v, func() error {
			fmt.Printf("%s v%d on %s, captured %s\n", v.Table, v.Version, v.Connection,
				v.CapturedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("checksum %s\n\n", v.Checksum)
			fmt.Println(v.Definition)
			return nil
		})
	})
}

func runVersionsTag(cmd *cobra.Command, args []string) error {
	version, err := parseVersionArg(args[0])
	if err != nil {
		return err
	}
	tag := args[1]
	connection, _ := cmd.Flags().GetString("connection")
	table, _ := cmd.Flags().GetString("table")
	createdBy, _ := cmd.Flags().GetString("by")
	memo, _ := cmd.Flags().GetString("memo")

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		if err := g.Store().TagVersion(ctx, connection, table, version, tag, memo, createdBy); err != nil {
			return err
		}
		fmt.Printf("tagged %s v%d as %q\n", table, version, tag)
		return nil
	})
}

func parseVersionArg(value string) (int64, error) {
	version, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid version %q", value)
	}
	return version, nil
}

func shortChecksum(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}

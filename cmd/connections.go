package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nsxbet/sql-governor/pkg/governor"
	"github.com/nsxbet/sql-governor/pkg/inspector"
)

// connectionsCmd represents the connections command
var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List configured connections",
	Long: `Connections lists the database targets declared in the config file.
Passwords are never part of the config and never shown; each entry only
names the environment variable that carries the secret.`,
	Example: `  sql-governor connections
  sql-governor connections test staging`,
	Args: cobra.NoArgs,
	RunE: runConnections,
}

// connectionsTestCmd opens a connection and probes it.
var connectionsTestCmd = &cobra.Command{
	Use:   "test <name>",
	Short: "Open a configured connection and probe the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runConnectionsTest,
}

func init() {
	rootCmd.AddCommand(connectionsCmd)
	connectionsCmd.AddCommand(connectionsTestCmd)
}

func runConnections(cmd *cobra.Command, args []string) error {
	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		connections := g.Config().Connections
		return output(connections, func() error {
			if len(connections) == 0 {
				fmt.Println("no connections configured")
				return nil
			}
			for _, cc := range connections {
				fmt.Printf("%-20s %-8s %s:%d/%s user=%s\n", cc.Name, cc.Engine,
					strings.Join(cc.Hosts, ","), cc.Port, cc.Database, cc.User)
			}
			return nil
		})
	})
}

func runConnectionsTest(cmd *cobra.Command, args []string) error {
	name := args[0]

	return withGovernor(func(ctx context.Context, g *governor.Governor) error {
		version, err := g.Registry().TestConnection(ctx, name)
		if err != nil {
			return err
		}
		db, err := g.Registry().Resolve(ctx, name)
		if err != nil {
			return err
		}
		databases, err := inspector.ListDatabases(ctx, db)
		if err != nil {
			return err
		}

		probe := struct {
			Connection string   `json:"connection"`
			Version    string   `json:"version"`
			Databases  []string `json:"databases"`
		}{name, version, databases}
		return output(probe, func() error {
			fmt.Printf("%s ok, server version %s\n", name, version)
			fmt.Printf("databases: %s\n", strings.Join(databases, ", "))
			return nil
		})
	})
}

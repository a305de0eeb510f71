package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"redfishd/internal/config"
	"redfishd/internal/events"
	"redfishd/internal/redfish"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "rf-subcheck",
		Short:        "Print the subscriptions persisted by rf-server",
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to rf-server.yaml")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var store events.Store
	switch cfg.EventService.Store {
	case "sqlite":
		db, err := events.OpenDB(cfg.EventService.DatabasePath, zap.NewNop())
		if err != nil {
			return fmt.Errorf("OpenDB failed: %w", err)
		}
		store = events.NewSQLiteStore(db)
		fmt.Println("Store:", cfg.EventService.DatabasePath, "(sqlite)")
	default:
		s, err := events.OpenFileStore(cfg.EventService.SubscriptionsPath)
		if err != nil {
			return fmt.Errorf("open store failed: %w", err)
		}
		store = s
		fmt.Println("Store:", cfg.EventService.SubscriptionsPath, "(file)")
	}
	defer store.Close()

	subs, err := store.Snapshot()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCONTEXT\tDESTINATION")
	for _, s := range redfish.SortedSubscriptions(subs) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.DestinationID, s.Name, s.Context, s.Endpoint)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Println("Subscriptions:", len(subs))
	return nil
}

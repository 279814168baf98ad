package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calgarydata/communityatlas/internal/source"
	"github.com/calgarydata/communityatlas/internal/store"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured datasets, optionally fetching each one",
	RunE:  runSources,
}

func init() {
	rootCmd.AddCommand(sourcesCmd)

	sourcesCmd.Flags().Bool("check", false, "Fetch every source and report feature counts")

	if err := viper.BindPFlag("sources_cmd.check", sourcesCmd.Flags().Lookup("check")); err != nil {
		panic(fmt.Sprintf("failed to bind flag: %v", err))
	}
}

func runSources(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	endpoints := viper.GetStringMapString("sources")
	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)

	if !viper.GetBool("sources_cmd.check") {
		for _, name := range names {
			fmt.Printf("%-22s %s\n", name, endpoints[name])
		}
		return nil
	}

	src := source.New(source.Config{
		Endpoints:   endpoints,
		OverpassURL: viper.GetString("overpass-url"),
		Timeout:     viper.GetDuration("fetch-timeout"),
		Logger:      logger,
	})
	st := store.New(store.Config{Fetcher: src, Logger: logger})

	failures := 0
	for _, name := range names {
		start := time.Now()
		fc, err := st.Get(cmd.Context(), name)
		if err != nil {
			failures++
			fmt.Printf("%-22s ERROR %v\n", name, err)
			continue
		}
		fmt.Printf("%-22s %6d features  %6.1fs\n", name, fc.Count(), time.Since(start).Seconds())
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d sources failed", failures, len(names))
	}
	return nil
}

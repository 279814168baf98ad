package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/calgarydata/communityatlas/internal/aggregate"
	"github.com/calgarydata/communityatlas/internal/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Run a one-shot full aggregation and print it as JSON",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().String("output", "", "Write JSON to this file instead of stdout")
	statsCmd.Flags().Bool("rankings", false, "Include per-metric rankings in the output")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, statsCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("stats.output", "output")
	mustBind("stats.rankings", "rankings")
}

func runStats(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	svc, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	start := time.Now()
	results, err := svc.FullAggregation(ctx)
	if err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}
	ordered, err := svc.Ordered(ctx, results)
	if err != nil {
		return fmt.Errorf("ordering failed: %w", err)
	}
	logger.Info("aggregation complete",
		"boundaries", len(ordered),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	payload := struct {
		GeneratedAt time.Time                 `json:"generatedAt"`
		Communities []*types.CommunityStats   `json:"communities"`
		Rankings    map[string]map[string]int `json:"rankings,omitempty"`
	}{
		GeneratedAt: time.Now().UTC(),
		Communities: ordered,
	}
	if viper.GetBool("stats.rankings") {
		payload.Rankings = aggregate.Rankings(ordered)
	}

	out := os.Stdout
	if path := viper.GetString("stats.output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

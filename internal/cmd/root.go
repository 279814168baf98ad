package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "communityatlas",
	Short: "Per-community spatial statistics for the city dashboard",
	Long: `CommunityAtlas computes per-community-boundary statistics over the city's
open geographic datasets: traffic incidents, parks, traffic signals, LRT
stops and lines, flood-risk zones and major roads.

It joins each dataset against the community boundaries incrementally, in
bounded chunks, over a layered feature cache, and serves the results to the
dashboard frontend as JSON.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("cache-db", "./atlas-cache.db", "SQLite file for the source cache layer (empty disables it)")
	rootCmd.PersistentFlags().Duration("cache-ttl", 0, "Disk cache freshness bound (0 = never expires)")
	rootCmd.PersistentFlags().Duration("fetch-timeout", 0, "Per-source fetch timeout (default 60s)")
	rootCmd.PersistentFlags().String("overpass-url", "", "Overpass API endpoint override")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}
	mustBind("cache-db", "cache-db")
	mustBind("cache-ttl", "cache-ttl")
	mustBind("fetch-timeout", "fetch-timeout")
	mustBind("overpass-url", "overpass-url")
	mustBind("verbose", "verbose")

	// The city's open-data exports; any entry can be overridden in the
	// config file, including pointing a source at a local mirror.
	viper.SetDefault("sources", map[string]string{
		"community-boundaries": "https://data.calgary.ca/resource/surr-xmvs.geojson?$limit=500",
		"traffic-incidents":    "https://data.calgary.ca/resource/35ra-9556.geojson?$limit=50000",
		"traffic-signals":      "https://data.calgary.ca/resource/qr97-4jvx.geojson?$limit=50000",
		"lrt-stops":            "https://data.calgary.ca/resource/2axz-xm4q.geojson?$limit=5000",
		"lrt-lines":            "https://data.calgary.ca/resource/qd7u-gsnn.geojson?$limit=1000",
		"parks":                "https://data.calgary.ca/resource/szkx-zhsk.geojson?$limit=10000",
		"flood-zones":          "https://data.calgary.ca/resource/5nk6-8fvx.geojson?$limit=10000",
		"major-roads":          `overpass:way["highway"~"motorway|trunk|primary"](50.84,-114.32,51.21,-113.86)`,
	})
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("COMMUNITYATLAS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

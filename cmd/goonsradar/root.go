package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/goonsradar/goonsradar/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "goonsradar",
	Short: "Track the last known positions of the Goons boss squad",
	Long: `goonsradar polls the eftarkov.com sightings feed, keeps the latest
sighting per map for PVP and PVE, and answers queries over HTTP, a chat
command surface and a websocket stream.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&cfgFile,
		"config",
		"c",
		"config.yaml",
		"path to config file (defaults are used when it does not exist)",
	)
}

// loadConfig reads --config and installs a JSON slog handler writing to w.
// The returned LevelVar lets the caller change the level later.
func loadConfig(w io.Writer) (*config.Config, *slog.LevelVar, error) {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))

	cfg, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	lvl, _ := config.ParseLevel(cfg.LogLevel) // validated by Load
	level.Set(lvl)
	return cfg, level, nil
}

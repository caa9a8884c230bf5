package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goonsradar/goonsradar/internal/app"
	"github.com/goonsradar/goonsradar/internal/query"
)

var queryJSON bool

var queryCmd = &cobra.Command{
	Use:   "query [map]",
	Short: "Fetch the feed once and print every map, or one map",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(os.Stderr)
		if err != nil {
			return err
		}
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		var (
			v    any
			text string
		)
		if len(args) == 0 {
			ov, err := a.Engine().ListAll(ctx)
			if err != nil {
				return err
			}
			v, text = ov, query.RenderOverview(ov)
		} else {
			rep, err := a.Engine().ByMap(ctx, args[0])
			if err != nil {
				return err
			}
			v, text = rep, query.RenderMap(rep)
		}

		out := cmd.OutOrStdout()
		if queryJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		}
		_, err = fmt.Fprintln(out, text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print JSON instead of text")
}

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goonsradar/goonsradar/internal/app"
)

var askCmd = &cobra.Command{
	Use:     "ask <command line>",
	Short:   "Run one chat command, e.g. goonsradar ask /三狗地图 海关",
	Args:    cobra.MinimumNArgs(1),
	Example: "  goonsradar ask 三狗\n  goonsradar ask /三狗地图 customs\n  goonsradar ask 三狗状态",
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

		reply, err := a.Dispatcher().Dispatch(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), reply)
		return err
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

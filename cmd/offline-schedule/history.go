package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [function]",
	Short: "Show recent firings recorded in storage",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of firings to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	task := ""
	if len(args) == 1 {
		task = args[0]
	}
	firings, err := a.History(cmd.Context(), task, historyLimit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, f := range firings {
		result := "ok"
		if !f.OK {
			result = "failed: " + f.Error
		}
		kind := "timer"
		if f.Immediate {
			kind = "immediate"
		}
		fmt.Fprintf(out, "%s  %-24s %-16s %-9s %6dms  %s\n",
			f.At.Local().Format(time.DateTime), f.Task, f.Schedule, kind, f.TookMS, result)
	}
	return nil
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"offsched/internal/task/invoke"
	"offsched/internal/task/schedule"
)

var listNext int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the resolved schedules without starting timers",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().IntVarP(&listNext, "next", "n", 1, "number of upcoming runs to show per schedule")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := a.Resolve()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "No scheduled functions.")
		return nil
	}

	skip := map[string]bool{}
	for _, s := range a.Config().SkipFunctions {
		skip[s] = true
	}
	now := time.Now().In(a.Config().Location())
	for _, t := range tasks {
		input, _ := invoke.EncodePayload(t.Payload)
		status := ""
		if skip[t.TaskName] {
			status = " (skipped)"
		}
		fmt.Fprintf(out, "%s%s input: %s\n", t.TaskName, status, input)
		for _, c := range t.Crons {
			next, err := schedule.NextN(c, now, listNext)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "  %-16s", c)
			for i, n := range next {
				if i > 0 {
					fmt.Fprint(out, ", ")
				}
				fmt.Fprint(out, n.Format(time.DateTime))
			}
			fmt.Fprintln(out)
		}
	}
	return nil
}

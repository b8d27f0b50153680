package main

import (
	"github.com/spf13/cobra"

	"offsched/internal/app"
)

var version = "dev"

var (
	cfgPath        string
	serverlessPath string
	skipFunctions  []string
	runImmediately bool
	logLevel       string
)

var rootCmd = &cobra.Command{
	Use:   "offline-schedule",
	Short: "Run serverless schedule events locally",
	Long: `Reads the schedule events of a serverless.yml, converts their rate
expressions to cron schedules and invokes each function when its timer fires.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgPath, "config", "c", "./offsched.yaml", "path to config file (yaml or json)")
	pf.StringVar(&serverlessPath, "serverless", "", "path to serverless.yml (overrides config)")
	pf.StringSliceVar(&skipFunctions, "skip", nil, "function names to skip (repeatable)")
	pf.BoolVar(&runImmediately, "run-immediately", false, "invoke every function once at startup")
	pf.StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
}

func newApp(cmd *cobra.Command) (*app.App, error) {
	over := app.Overrides{
		Serverless:    serverlessPath,
		SkipFunctions: skipFunctions,
		LogLevel:      logLevel,
	}
	if cmd.Flags().Changed("run-immediately") {
		v := runImmediately
		over.RunImmediately = &v
	}
	return app.New(app.Options{ConfigPath: cfgPath, Overrides: over})
}

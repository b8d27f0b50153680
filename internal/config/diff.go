package config

import (
	"reflect"
	"slices"
	"strings"

	logx "offsched/pkg/logx"
)

// LiveSections lists sections that take effect without a restart.
var LiveSections = []string{"logging"}

// SummarizeChange returns the changed top-level sections and structured attrs
// describing the new values.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 8)

	if strings.TrimSpace(oldCfg.Serverless) != strings.TrimSpace(newCfg.Serverless) {
		changed = append(changed, "serverless")
		attrs = append(attrs, logx.String("serverless", newCfg.Serverless))
	}
	if !slices.Equal(oldCfg.SkipFunctions, newCfg.SkipFunctions) {
		changed = append(changed, "skip_functions")
		attrs = append(attrs, logx.Strings("skip_functions", newCfg.SkipFunctions))
	}
	if oldCfg.RunImmediately != newCfg.RunImmediately {
		changed = append(changed, "run_immediately")
		attrs = append(attrs, logx.Bool("run_immediately", newCfg.RunImmediately))
	}
	if strings.TrimSpace(oldCfg.Timezone) != strings.TrimSpace(newCfg.Timezone) {
		changed = append(changed, "timezone")
		attrs = append(attrs, logx.String("timezone", newCfg.Timezone))
	}
	if !reflect.DeepEqual(oldCfg.Invoker, newCfg.Invoker) {
		changed = append(changed, "invoker")
		attrs = append(attrs, logx.String("invoker.kind", newCfg.Invoker.Kind))
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		driver := ""
		if newCfg.Storage != nil {
			driver = newCfg.Storage.Driver
		}
		attrs = append(attrs, logx.String("storage.driver", driver))
	}
	return changed, attrs
}

// RestartRequired filters changed down to sections that only apply on restart.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		if !slices.Contains(LiveSections, s) {
			out = append(out, s)
		}
	}
	return out
}

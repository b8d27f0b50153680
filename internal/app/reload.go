package app

import (
	"context"
	"strings"

	"offsched/internal/config"
	logx "offsched/pkg/logx"
)

// reloadLoop applies the logging section of every published config. Other
// sections are snapshotted at start and only reported.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	lastApplied := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					drained = true
				}
			}
			newCfg = applyOverrides(newCfg, a.over)
			a.applyReload(lastApplied, newCfg)
			lastApplied = newCfg
		}
	}
}

func (a *App) applyReload(oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	for _, s := range sections {
		if s == "logging" {
			a.logs.Apply(newCfg.LogConfig())
			a.log.Info("logging config applied", logx.String("level", newCfg.Logging.Level))
		}
	}
	if pending := config.RestartRequired(sections); len(pending) > 0 {
		a.log.Warn("config changes require a restart", logx.Strings("sections", pending))
	}
}

package packager

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.uber.org/zap/zapcore"

	"github.com/oshokin/umu-scout/internal/domain/versions"
	"github.com/oshokin/umu-scout/internal/logger"
)

// Status compares prior and current versions and prints a table without building anything.
func Status(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "umu-scout-status")

	// Keep the table readable unless debugging.
	if logger.Level() > zapcore.DebugLevel {
		ctx = logger.WithMinLevel(ctx, zapcore.WarnLevel)
	}

	pkg, err := newPackager(opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	prior, current, err := pkg.resolve(ctx)
	if err != nil {
		return err
	}

	pkg.renderStatus(prior, current)

	return nil
}

// renderStatus writes one row per component followed by the overall decision.
func (p *packager) renderStatus(prior, current *versions.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(p.stdout)
	t.AppendHeader(table.Row{"Component", "Published", "Upstream", "State"})

	for _, change := range versions.Compare(prior, current, p.cfg.ComponentNames()) {
		state := "current"
		if change.Changed() {
			state = "stale"
		}

		t.AppendRow(table.Row{change.Component, displayPrevious(change), change.Current, state})
	}

	previousTag := none
	if prior != nil && prior.Tag != "" {
		previousTag = prior.Tag
	}

	t.AppendFooter(table.Row{versions.TagKey, previousTag, current.Tag, ""})
	t.SetStyle(table.StyleRounded)
	t.Render()

	decision := "current"
	if versions.Decide(prior, current, p.cfg.ComponentNames()) == versions.Rebuild {
		decision = "stale"
	}

	_, _ = fmt.Fprintln(p.stdout, decision)
}

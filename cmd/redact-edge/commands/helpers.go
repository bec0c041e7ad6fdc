package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spherical/redact-edge/cmd/redact-edge/ui"
	"github.com/spherical/redact-edge/internal/config"
	"github.com/spherical/redact-edge/internal/journal"
	"github.com/spherical/redact-edge/internal/pdf"
)

// signalContext is cancelled on SIGINT or SIGTERM, after printing notice.
func signalContext(notice string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			ui.Warning("%s", notice)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func newEngines() (*pdf.Engine, *pdf.Rasterizer) {
	return pdf.NewEngine(logger), pdf.NewRasterizer(logger)
}

// openJournal opens the run journal, or returns nil when it is disabled.
func openJournal() (*journal.Journal, error) {
	if !appCfg.Journal.Enabled {
		return nil, nil
	}
	j, err := journal.Open(appCfg.Journal.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", appCfg.Journal.Path, err)
	}
	return j, nil
}

// parseRect reads "x0,y0,x1,y1".
func parseRect(s string) (config.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("rect %q: want x0,y0,x1,y1", s)
	}
	rect := make(config.Rect, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("rect %q: %w", s, err)
		}
		rect[i] = v
	}
	return rect, nil
}

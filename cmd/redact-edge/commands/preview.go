package commands

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/redact-edge/cmd/redact-edge/ui"
	"github.com/spherical/redact-edge/internal/preview"
)

var (
	previewPage int
	previewDPI  float64
	previewOut  string
)

var previewCmd = &cobra.Command{
	Use:   "preview <file.pdf>",
	Short: "Render one page to PNG and print its geometry",
	Args:  cobra.ExactArgs(1),
	RunE:  runPreview,
}

func init() {
	previewCmd.Flags().IntVarP(&previewPage, "page", "p", 0, "zero-based page")
	previewCmd.Flags().Float64Var(&previewDPI, "dpi", 0, "render resolution (default from config)")
	previewCmd.Flags().StringVarP(&previewOut, "output", "o", "", "PNG path (default <name>_page_<n>.png)")
	rootCmd.AddCommand(previewCmd)
}

// openPreview renders page of path and returns the renderer and its frame.
func openPreview(cmd *cobra.Command, path string, page int, dpi float64) (*preview.Renderer, *preview.Frame, error) {
	if dpi <= 0 {
		dpi = appCfg.Render.PreviewDPI
	}
	engine, raster := newEngines()
	r := preview.NewRenderer(engine, raster, dpi, logger)

	frame, err := r.Open(cmd.Context(), path)
	if err != nil {
		return nil, nil, err
	}
	if page != 0 {
		if frame, err = r.Goto(cmd.Context(), page); err != nil {
			r.Close()
			return nil, nil, err
		}
	}
	return r, frame, nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	r, frame, err := openPreview(cmd, args[0], previewPage, previewDPI)
	if err != nil {
		return err
	}
	defer r.Close()

	out := previewOut
	if out == "" {
		stem := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		out = fmt.Sprintf("%s_page_%d.png", stem, frame.Page+1)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := png.Encode(f, frame.Image); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	printFrame(frame)
	ui.Success("Wrote %s", out)
	return nil
}

func printFrame(frame *preview.Frame) {
	ui.Section(frame.Label())
	rx, ry := frame.Mapping().Ratios()
	ui.KeyValue("Pixels", fmt.Sprintf("%dx%d at %.0f dpi", frame.WidthPx(), frame.HeightPx(), frame.DPI))
	ui.KeyValue("Points", fmt.Sprintf("%.2fx%.2f", frame.WidthPt, frame.HeightPt))
	ui.KeyValue("Rotation", fmt.Sprintf("%d", frame.Rotation))
	ui.KeyValue("Points per pixel", fmt.Sprintf("%.4f x %.4f", rx, ry))
}

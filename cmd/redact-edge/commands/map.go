package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spherical/redact-edge/cmd/redact-edge/ui"
	"github.com/spherical/redact-edge/internal/config"
	"github.com/spherical/redact-edge/internal/selection"
)

var (
	mapPage    int
	mapDPI     float64
	mapRect    string
	mapPurpose string
)

var mapCmd = &cobra.Command{
	Use:   "map <file.pdf>",
	Short: "Convert a pixel rectangle on a rendered page into document points",
	Long: `Map renders the page like preview does and converts a rectangle dragged on
that image into document points. The result can be pasted into a job file.`,
	Example: `  redact-edge map brochure.pdf --page 1 --rect 100,100,400,300 --purpose area`,
	Args:    cobra.ExactArgs(1),
	RunE:    runMap,
}

func init() {
	mapCmd.Flags().IntVarP(&mapPage, "page", "p", 0, "zero-based page")
	mapCmd.Flags().Float64Var(&mapDPI, "dpi", 0, "render resolution the pixels refer to (default from config)")
	mapCmd.Flags().StringVar(&mapRect, "rect", "", "pixel rect x0,y0,x1,y1 (required)")
	mapCmd.Flags().StringVar(&mapPurpose, "purpose", "textbox", "textbox or area")
	mapCmd.MarkFlagRequired("rect")
	rootCmd.AddCommand(mapCmd)
}

func runMap(cmd *cobra.Command, args []string) error {
	px, err := parseRect(mapRect)
	if err != nil {
		return err
	}
	purpose, err := selection.ParsePurpose(mapPurpose)
	if err != nil {
		return err
	}

	r, frame, err := openPreview(cmd, args[0], mapPage, mapDPI)
	if err != nil {
		return err
	}
	defer r.Close()

	sel := selection.NewSelector(logger)
	sel.SetPurpose(purpose)
	sel.SetFrame(frame)
	sel.Press(px[0], px[1])
	got, err := sel.Release(px[2], px[3])
	if err != nil {
		return err
	}

	printFrame(frame)
	ui.KeyValue("Document rect", got.Rect.String())

	spec := map[string]config.SelectionSpec{
		purpose.String(): {Page: got.Page, Rect: config.Rect{got.Rect.X0, got.Rect.Y0, got.Rect.X1, got.Rect.Y1}},
	}
	out, err := yaml.Marshal(spec)
	if err != nil {
		return err
	}
	ui.Newline()
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

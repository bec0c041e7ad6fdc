package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/redact-edge/cmd/redact-edge/ui"
	"github.com/spherical/redact-edge/internal/config"
	"github.com/spherical/redact-edge/internal/observability"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	appCfg *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "redact-edge",
	Short: "Batch redaction and editing of PDF documents",
	Long: `redact-edge applies a fixed chain of edits to PDF documents: delete text,
replace text, replace images, delete images, add a text box and blank out an
area. Selections for the text box and the area can be captured on a rendered
preview, either through the HTTP surface (serve) or with the map command.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		appCfg = cfg

		level := cfg.Observability.LogLevel
		switch {
		case verbose:
			level = "debug"
		case cmd.Name() != "serve":
			// progress output owns the terminal
			level = "warn"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:  level,
			Format: cfg.Observability.LogFormat,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/spherical/doc-converter/cmd/doc-converter/ui"
	"github.com/spherical/doc-converter/internal/config"
)

// Build information, set with -ldflags.
var (
	Version = "dev"
	Commit  = "none"
)

var (
	cfgFile string
	verbose bool
	noColor bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "doc-converter",
	Short: "Convert images and PDFs into text, Word, PDF, Excel and PowerPoint files",
	Long: `doc-converter turns a raster image or a PDF into a downloadable artifact.
Images can become plain text or Word documents through OCR, or be wrapped
in a single-page PDF. PDFs can become plain text, Word documents, slide
decks, or spreadsheets built from the tables they contain.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose)

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Observability.LogLevel = "debug"
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// Command doc-converter converts images and PDFs into text, Word, PDF, Excel
// and PowerPoint files, from the command line or over HTTP.
package main

import (
	"os"

	"github.com/spherical/doc-converter/cmd/doc-converter/commands"
	"github.com/spherical/doc-converter/cmd/doc-converter/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.Error("Error: %v", err)
		os.Exit(1)
	}
}

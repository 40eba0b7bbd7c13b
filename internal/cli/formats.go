package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pdfmill/pdfmill/pkg/convert"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List supported input formats",
	Run:   runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(_ *cobra.Command, _ []string) {
	registry := convert.DefaultRegistry(convert.NewSofficeRenderer(""))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "EXTENSION\tCONVERTER\n")
	for _, ext := range registry.Extensions() {
		c, _ := registry.Lookup(ext)
		fmt.Fprintf(w, "%s\t%s\n", ext, c.Name())
	}
	w.Flush()
}

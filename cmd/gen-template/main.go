// Command gen-template writes the canonical reimbursement report template
// to the given path.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/isdlab/reimburse/internal/report"
)

func main() {
	out := flag.String("out", "templates/isd_reimbursement_template.xlsx", "output path for the template workbook")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*out), 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}
	if err := report.WriteDefaultTemplate(*out); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write template: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Template written to %s\n", *out)
}

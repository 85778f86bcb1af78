// Command mailmerge fills a PDF template with one document per data row.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Lllllllleong/pdfmailmerge/internal/cli"
)

func main() {
	app := cli.New()
	if err := app.Execute(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

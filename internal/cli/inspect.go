package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/pdfmailmerge/internal/export"
	"github.com/Lllllllleong/pdfmailmerge/internal/identity"
)

func (a *App) newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <pdf>",
		Short: "Print the content hash that identifies a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := identity.HashFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, id)
			return nil
		},
	}
}

func (a *App) newPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages <pdf>",
		Short: "Print the size of every page in PDF points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read template: %w", err)
			}
			pages, err := export.PageDims(cmd.Context(), data)
			if err != nil {
				return err
			}
			for i, p := range pages {
				fmt.Fprintf(a.stdout, "page %d: %.2f x %.2f pt\n", i+1, p.Width, p.Height)
			}
			return nil
		},
	}
}

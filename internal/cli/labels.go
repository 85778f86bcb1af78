package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/pdfmailmerge/internal/labels"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// StyleOptions holds the label style flags shared by add and style.
type StyleOptions struct {
	Text   string
	Font   string
	Size   float64
	Bold   bool
	Italic bool
}

func (o *StyleOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Text, "text", "t", "", "Data column the label is bound to")
	cmd.Flags().StringVar(&o.Font, "font", "", "Font family (Helvetica, Times or Courier)")
	cmd.Flags().Float64Var(&o.Size, "size", 0, "Font size in PDF points")
	cmd.Flags().BoolVar(&o.Bold, "bold", false, "Use the bold weight")
	cmd.Flags().BoolVar(&o.Italic, "italic", false, "Use the italic style")
}

// patch builds an update from the flags the user actually set.
func (o *StyleOptions) patch(cmd *cobra.Command) labels.Patch {
	var p labels.Patch
	flags := cmd.Flags()
	if flags.Changed("text") {
		p.Text = &o.Text
	}
	if flags.Changed("font") {
		p.FontFamily = &o.Font
	}
	if flags.Changed("size") {
		p.FontSize = &o.Size
	}
	if flags.Changed("bold") {
		w := models.WeightNormal
		if o.Bold {
			w = models.WeightBold
		}
		p.FontWeight = &w
	}
	if flags.Changed("italic") {
		s := models.StyleNormal
		if o.Italic {
			s = models.StyleItalic
		}
		p.FontStyle = &s
	}
	return p
}

func (a *App) newLabelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Place and edit the labels of a template",
	}
	cmd.AddCommand(
		a.newLabelsAddCmd(),
		a.newLabelsMoveCmd(),
		a.newLabelsStyleCmd(),
		a.newLabelsRmCmd(),
		a.newLabelsLsCmd(),
	)
	return cmd
}

// AddOptions holds options for labels add.
type AddOptions struct {
	StyleOptions
	Page int
	X    float64
	Y    float64
}

func (a *App) newLabelsAddCmd() *cobra.Command {
	opts := &AddOptions{}

	cmd := &cobra.Command{
		Use:   "add <pdf>",
		Short: "Place a new label and print its id",
		Long: `Place a new label on a page. --x and --y are fractions of the page
measured from its top-left corner.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx, args[0], "")
			if err != nil {
				return err
			}
			defer s.close()

			page, err := s.pageArg(opts.Page)
			if err != nil {
				return err
			}
			l, err := s.ws.Store().Add(page, labels.Position{X: opts.X, Y: opts.Y})
			if err != nil {
				return err
			}
			s.ws.Store().Update(l.ID, opts.patch(cmd), nil)
			if err := s.save(ctx); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, l.ID)
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().IntVarP(&opts.Page, "page", "p", 1, "Page number, starting at 1")
	cmd.Flags().Float64Var(&opts.X, "x", 0, "Horizontal position as a fraction of the page width")
	cmd.Flags().Float64Var(&opts.Y, "y", 0, "Vertical position from the top as a fraction of the page height")

	return cmd
}

// MoveOptions holds options for labels move.
type MoveOptions struct {
	X     float64
	Y     float64
	Width float64
}

func (a *App) newLabelsMoveCmd() *cobra.Command {
	opts := &MoveOptions{}

	cmd := &cobra.Command{
		Use:   "move <pdf> <label-id>",
		Short: "Move a label",
		Long: `Move a label. Without --width, --x and --y are fractions of the page.
With --width, they are pixels on the label's page rendered at that width.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx, args[0], "")
			if err != nil {
				return err
			}
			defer s.close()

			l, ok := s.ws.Store().Get(args[1])
			if !ok {
				return fmt.Errorf("label %s not found", args[1])
			}

			if opts.Width > 0 {
				rc, err := s.ws.Navigate(ctx, l.PageIndex, opts.Width)
				if err != nil {
					return err
				}
				a.logger.Debug("Rendered page for move.", "pageIndex", rc.PageIndex, "width", rc.Width, "height", rc.Height, "scale", rc.Scale)
				s.ws.MoveTo(l.ID, opts.X, opts.Y)
			} else {
				s.ws.Store().Update(l.ID, labels.Patch{RelativeX: &opts.X, RelativeY: &opts.Y}, nil)
			}
			return s.save(ctx)
		},
	}

	cmd.Flags().Float64Var(&opts.X, "x", 0, "Horizontal position")
	cmd.Flags().Float64Var(&opts.Y, "y", 0, "Vertical position from the top")
	cmd.Flags().Float64Var(&opts.Width, "width", 0, "Rendered page width in pixels the position refers to")
	_ = cmd.MarkFlagRequired("x")
	_ = cmd.MarkFlagRequired("y")

	return cmd
}

func (a *App) newLabelsStyleCmd() *cobra.Command {
	opts := &StyleOptions{}

	cmd := &cobra.Command{
		Use:   "style <pdf> <label-id>",
		Short: "Change a label's text or font",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx, args[0], "")
			if err != nil {
				return err
			}
			defer s.close()

			if _, ok := s.ws.Store().Get(args[1]); !ok {
				return fmt.Errorf("label %s not found", args[1])
			}
			s.ws.Store().Update(args[1], opts.patch(cmd), nil)
			return s.save(ctx)
		},
	}

	opts.bind(cmd)
	return cmd
}

func (a *App) newLabelsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <pdf> <label-id>...",
		Short: "Remove labels",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openSession(ctx, args[0], "")
			if err != nil {
				return err
			}
			defer s.close()

			for _, id := range args[1:] {
				if _, ok := s.ws.Store().Get(id); !ok {
					return fmt.Errorf("label %s not found", id)
				}
				s.ws.Store().Remove(id)
			}
			return s.save(ctx)
		},
	}
}

func (a *App) newLabelsLsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ls <pdf>",
		Short: "List the labels of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openSession(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer s.close()

			all := s.ws.Store().All()
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPAGE\tX\tY\tTEXT\tFONT\tSIZE\tWEIGHT\tSTYLE")
			for _, l := range all {
				fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%s\t%s\t%g\t%s\t%s\n",
					l.ID, l.PageIndex+1, l.RelativeX, l.RelativeY, l.Text, l.FontFamily, l.FontSize, l.FontWeight, l.FontStyle)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print labels as JSON")
	return cmd
}

package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Lllllllleong/pdfmailmerge/internal/export"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
	"github.com/Lllllllleong/pdfmailmerge/internal/tabular"
	"github.com/Lllllllleong/pdfmailmerge/internal/templating"
)

// RunOptions holds the options shared by export and preview.
type RunOptions struct {
	Job              string
	Data             string
	Row              int
	FileNameTemplate string
	EmailTo          string
	EmailSubject     string
	EmailBody        string
}

func (o *RunOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Job, "job", "j", "", "YAML job file")
	cmd.Flags().StringVarP(&o.Data, "data", "d", "", "Data file (.csv, .tsv or .json)")
	cmd.Flags().StringVarP(&o.FileNameTemplate, "name", "n", "", `File name template, e.g. "{{Name}}_{{date}}"`)
	cmd.Flags().StringVar(&o.EmailTo, "email-to", "", "Recipient template")
	cmd.Flags().StringVar(&o.EmailSubject, "email-subject", "", "Subject template")
	cmd.Flags().StringVar(&o.EmailBody, "email-body", "", "Body template")
}

// resolve merges the job file with the flags and positional template.
func (o *RunOptions) resolve(cmd *cobra.Command, args []string) (*Job, error) {
	job := &Job{}
	if o.Job != "" {
		var err error
		if job, err = LoadJob(o.Job); err != nil {
			return nil, err
		}
	}
	if len(args) > 0 {
		job.Template = args[0]
	}
	if o.Data != "" {
		job.Data = o.Data
	}
	if o.FileNameTemplate != "" {
		job.FileNameTemplate = o.FileNameTemplate
	}

	flags := cmd.Flags()
	if flags.Changed("email-to") || flags.Changed("email-subject") || flags.Changed("email-body") {
		email := models.EmailTemplates{}
		if job.Email != nil {
			email = *job.Email
		}
		if flags.Changed("email-to") {
			email.To = o.EmailTo
		}
		if flags.Changed("email-subject") {
			email.Subject = o.EmailSubject
		}
		if flags.Changed("email-body") {
			email.Body = o.EmailBody
		}
		job.Email = &email
	}

	if job.Template == "" {
		return nil, errors.New("no template given")
	}
	if job.Data == "" {
		return nil, errors.New("no data file given; use --data")
	}
	return job, nil
}

// apply sets the job's overrides on the session. They are not saved.
func (s *session) apply(job *Job, stderr func(format string, a ...any)) {
	if job.FileNameTemplate != "" {
		s.ws.SetFileNameTemplate(job.FileNameTemplate)
	}
	if job.Email != nil {
		s.ws.SetEmailTemplates(*job.Email)
	}
	if len(job.Labels) > 0 {
		jobLabels := make([]models.Label, len(job.Labels))
		copy(jobLabels, job.Labels)
		for i := range jobLabels {
			if jobLabels[i].ID == "" {
				jobLabels[i].ID = uuid.NewString()
			}
		}
		if dropped := s.ws.Store().Replace(jobLabels); dropped > 0 {
			stderr("warning: %d job labels did not fit the template\n", dropped)
		}
	}
}

func loadRows(path string) ([]models.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}
	table, err := tabular.Parse(filepath.Base(path), data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return table.Rows, nil
}

// ExportOptions holds options for the export command.
type ExportOptions struct {
	RunOptions
	Output          string
	FailurePolicy   string
	CollisionPolicy string
}

func (a *App) newExportCmd() *cobra.Command {
	opts := &ExportOptions{}

	cmd := &cobra.Command{
		Use:   "export [pdf]",
		Short: "Generate one PDF per data row",
		Long: `Generate one PDF per data row.

With --row, only that row is exported and written as a PDF file; --out names
the file or the directory to write it to. Without --row every row is exported
into a zip archive with a manifest.json describing each row.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := opts.resolve(cmd, args)
			if err != nil {
				return err
			}
			if opts.Output != "" {
				job.Output = opts.Output
			}
			if opts.FailurePolicy != "" {
				job.FailurePolicy = opts.FailurePolicy
			}
			if opts.CollisionPolicy != "" {
				job.CollisionPolicy = opts.CollisionPolicy
			}
			if opts.Row > 0 {
				return a.exportRow(cmd, job, opts.Row)
			}
			return a.exportAll(cmd, job)
		},
	}

	opts.bind(cmd)
	cmd.Flags().IntVarP(&opts.Row, "row", "r", 0, "Export only this row, starting at 1")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", "", "Output file or directory")
	cmd.Flags().StringVar(&opts.FailurePolicy, "failure-policy", "", `"isolate" (default) or "failfast"`)
	cmd.Flags().StringVar(&opts.CollisionPolicy, "collision-policy", "", `"overwrite" (default) or "suffix"`)

	return cmd
}

func (a *App) exportRow(cmd *cobra.Command, job *Job, n int) error {
	ctx := cmd.Context()
	rows, err := loadRows(job.Data)
	if err != nil {
		return err
	}
	if err := checkRow(n, len(rows)); err != nil {
		return err
	}

	s, err := a.openSession(ctx, job.Template, "")
	if err != nil {
		return err
	}
	defer s.close()
	s.apply(job, a.warnf)

	out, draft, err := s.ws.Export(ctx, rows[n-1], n)
	if err != nil {
		return fmt.Errorf("failed to export row %d: %w", n, err)
	}

	path := out.FileName
	switch {
	case job.Output == "":
	case strings.EqualFold(filepath.Ext(job.Output), ".pdf"):
		path = job.Output
	default:
		if err := os.MkdirAll(job.Output, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		path = filepath.Join(job.Output, out.FileName)
	}
	if err := os.WriteFile(path, out.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	fmt.Fprintln(a.stdout, path)
	for _, skip := range out.Plan.Skipped {
		a.warnf("warning: label %s not drawn: %s\n", skip.LabelID, skip.Reason)
	}
	if draft != nil {
		fmt.Fprintln(a.stdout, draft.Mailto)
	}
	return nil
}

func (a *App) exportAll(cmd *cobra.Command, job *Job) error {
	ctx := cmd.Context()
	policy, err := export.ParseFailurePolicy(job.FailurePolicy)
	if err != nil {
		return err
	}
	collision, err := export.ParseCollisionPolicy(job.CollisionPolicy)
	if err != nil {
		return err
	}
	rows, err := loadRows(job.Data)
	if err != nil {
		return err
	}

	s, err := a.openSession(ctx, job.Template, policy)
	if err != nil {
		return err
	}
	defer s.close()
	s.apply(job, a.warnf)

	batch, err := s.ws.ExportAll(ctx, rows)
	if err != nil {
		return err
	}
	files, manifest := export.Arrange(batch, collision)

	path := job.Output
	if path == "" {
		path = templating.BaseName(s.open.Document.Name) + "_merged.zip"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WriteBundle(f, files, manifest); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	for _, m := range manifest {
		if m.Status == models.RowFailed {
			a.warnf("row %d failed: %s\n", m.Row, m.Error)
		}
	}
	fmt.Fprintf(a.stdout, "wrote %d of %d documents to %s\n", len(files), len(rows), path)
	if failed := batch.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d rows failed", failed, len(rows))
	}
	return nil
}

func (a *App) newPreviewCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "preview [pdf]",
		Short: "Show where one row's values would be drawn",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			job, err := opts.resolve(cmd, args)
			if err != nil {
				return err
			}
			rows, err := loadRows(job.Data)
			if err != nil {
				return err
			}
			if err := checkRow(opts.Row, len(rows)); err != nil {
				return err
			}

			s, err := a.openSession(ctx, job.Template, "")
			if err != nil {
				return err
			}
			defer s.close()
			s.apply(job, a.warnf)

			row := rows[opts.Row-1]
			vars, err := s.ws.Variables(row, opts.Row)
			if err != nil {
				return err
			}
			plan := export.BuildPlan(s.ws.Store().All(), row, s.open.Document.Pages)

			fmt.Fprintf(a.stdout, "file: %s\n", export.FileName(s.ws.FileNameTemplate(), vars))
			for _, p := range plan.Placements {
				face := export.SelectFace(export.FontSetFor(p.FontFamily), p.FontWeight, p.FontStyle)
				fmt.Fprintf(a.stdout, "page %d  x=%.2f y=%.2f  %s %gpt  %q\n",
					p.PageIndex+1, p.X, p.Y, face, p.FontSize, p.Text)
			}
			for _, skip := range plan.Skipped {
				fmt.Fprintf(a.stdout, "skip %s: %s\n", skip.LabelID, skip.Reason)
			}
			if t, ok := s.ws.EmailTemplates(); ok {
				fmt.Fprintf(a.stdout, "email: %s\n", templating.Draft(t, vars).Mailto)
			}
			return nil
		},
	}

	opts.bind(cmd)
	cmd.Flags().IntVarP(&opts.Row, "row", "r", 1, "Row to preview, starting at 1")
	return cmd
}

func (a *App) warnf(format string, args ...any) {
	fmt.Fprintf(a.stderr, format, args...)
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/pdfmailmerge/internal/export"
	"github.com/Lllllllleong/pdfmailmerge/internal/persistence"
	"github.com/Lllllllleong/pdfmailmerge/internal/workspace"
)

// session is a workspace opened on one template file for a single command.
type session struct {
	ws    *workspace.Workspace
	open  workspace.OpenResult
	close func()
}

func (a *App) openSession(ctx context.Context, templatePath string, policy export.FailurePolicy) (*session, error) {
	data, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	kv, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	ws := workspace.New(workspace.Config{
		Adapter: persistence.NewAdapter(kv, a.logger),
		Engine:  export.NewEngine(export.Config{FailurePolicy: policy, Logger: a.logger}),
		Logger:  a.logger,
		Now:     a.now,
	})
	res, err := ws.Open(ctx, filepath.Base(templatePath), data)
	if err != nil {
		closeStore()
		return nil, err
	}
	for _, page := range res.Purged {
		fmt.Fprintf(a.stderr, "warning: discarded unreadable saved labels for page %d\n", page+1)
	}
	if res.Dropped > 0 {
		fmt.Fprintf(a.stderr, "warning: %d saved labels did not fit the template\n", res.Dropped)
	}
	return &session{ws: ws, open: res, close: closeStore}, nil
}

// save persists the session. A *persistence.SaveError names the pages that
// were not written.
func (s *session) save(ctx context.Context) error {
	if err := s.ws.Save(ctx); err != nil {
		return fmt.Errorf("failed to save labels: %w", err)
	}
	return nil
}

// pageArg converts a 1-based page flag into a page index of the template.
func (s *session) pageArg(page int) (int, error) {
	n := len(s.open.Document.Pages)
	if page < 1 || page > n {
		return 0, fmt.Errorf("page %d is outside the template's %d pages", page, n)
	}
	return page - 1, nil
}

func checkRow(n, rowCount int) error {
	if n < 1 || n > rowCount {
		return fmt.Errorf("row %d is outside the data's %d rows", n, rowCount)
	}
	return nil
}

package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdfmailmerge/internal/export"
	"github.com/Lllllllleong/pdfmailmerge/internal/identity"
	"github.com/Lllllllleong/pdfmailmerge/internal/models"
	"github.com/Lllllllleong/pdfmailmerge/internal/pdftest"
	"github.com/Lllllllleong/pdfmailmerge/internal/persistence"
)

const people = "Name,Email\nAda,ada@example.com\nGrace,grace@example.com\n"

// fixture is a template and data file in a temporary directory with a
// Badger store shared by every command run against it.
type fixture struct {
	dir      string
	template string
	data     string
	store    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		template: filepath.Join(dir, "letter.pdf"),
		data:     filepath.Join(dir, "people.csv"),
		store:    "badger:" + filepath.Join(dir, "store"),
	}
	require.NoError(t, os.WriteFile(f.template, pdftest.Build(pdftest.Letter, pdftest.A4), 0o644))
	require.NoError(t, os.WriteFile(f.data, []byte(people), 0o644))
	return f
}

// run executes one command on a fresh App, as separate invocations would.
func (f *fixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := New().WithOutput(&stdout, &stderr)
	app.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	err := app.ExecuteWithArgs(context.Background(), append([]string{"--store", f.store}, args...))
	return stdout.String(), stderr.String(), err
}

func (f *fixture) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, stderr, err := f.run(t, args...)
	require.NoError(t, err, stderr)
	return out
}

func (f *fixture) listLabels(t *testing.T) []models.Label {
	t.Helper()
	var got []models.Label
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "labels", "ls", f.template, "--json")), &got))
	return got
}

func TestVersionCommand(t *testing.T) {
	var stdout bytes.Buffer
	app := New().WithOutput(&stdout, &bytes.Buffer{})

	err := app.ExecuteWithArgs(context.Background(), []string{"version"})
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "mailmerge version")
	assert.Contains(t, stdout.String(), "Git commit:")
}

func TestHashAndPages(t *testing.T) {
	f := newFixture(t)

	want, err := identity.HashFile(f.template)
	require.NoError(t, err)
	assert.Equal(t, want+"\n", f.mustRun(t, "hash", f.template))

	out := f.mustRun(t, "pages", f.template)
	assert.Equal(t, "page 1: 612.00 x 792.00 pt\npage 2: 595.00 x 842.00 pt\n", out)
}

func TestPages_NotAPDF(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.run(t, "pages", f.data)
	assert.ErrorIs(t, err, export.ErrTemplateLoad)
}

func TestLabelsLifecycle(t *testing.T) {
	f := newFixture(t)

	id := strings.TrimSpace(f.mustRun(t, "labels", "add", f.template, "--page", "2", "--x", "0.1", "--y", "0.2", "--text", "Name"))
	require.NotEmpty(t, id)

	got := f.listLabels(t)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)
	assert.Equal(t, 1, got[0].PageIndex)
	assert.Equal(t, "Name", got[0].Text)
	assert.Equal(t, 12.0, got[0].FontSize)

	f.mustRun(t, "labels", "style", f.template, id, "--bold", "--size", "14", "--font", "Times")
	got = f.listLabels(t)
	assert.Equal(t, models.WeightBold, got[0].FontWeight)
	assert.Equal(t, models.StyleNormal, got[0].FontStyle)
	assert.Equal(t, 14.0, got[0].FontSize)
	assert.Equal(t, "Times", got[0].FontFamily)
	assert.Equal(t, "Name", got[0].Text, "unset flags leave the label unchanged")

	f.mustRun(t, "labels", "move", f.template, id, "--x", "0.5", "--y", "1.5")
	got = f.listLabels(t)
	assert.InDelta(t, 0.5, got[0].RelativeX, 1e-9)
	assert.InDelta(t, 1.0, got[0].RelativeY, 1e-9, "positions clamp to the page")

	// A4 rendered 297.5 wide is 421 high.
	f.mustRun(t, "labels", "move", f.template, id, "--width", "297.5", "--x", "59.5", "--y", "105.25")
	got = f.listLabels(t)
	assert.InDelta(t, 0.2, got[0].RelativeX, 1e-9)
	assert.InDelta(t, 0.25, got[0].RelativeY, 1e-9)

	table := f.mustRun(t, "labels", "ls", f.template)
	assert.Contains(t, table, "ID")
	assert.Contains(t, table, id)

	f.mustRun(t, "labels", "rm", f.template, id)
	assert.Empty(t, f.listLabels(t))
}

func TestLabelsAdd_PageOutOfRange(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.run(t, "labels", "add", f.template, "--page", "3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the template's 2 pages")
}

func TestLabelsFollowContentNotName(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "labels", "add", f.template, "--text", "Name")

	renamed := filepath.Join(f.dir, "copy of letter.pdf")
	data, err := os.ReadFile(f.template)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(renamed, data, 0o644))

	var got []models.Label
	require.NoError(t, json.Unmarshal([]byte(f.mustRun(t, "labels", "ls", renamed, "--json")), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "Name", got[0].Text)
}

func TestLabelsUnknownID(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.run(t, "labels", "rm", f.template, "missing")
	assert.EqualError(t, err, "label missing not found")
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "labels", "add", f.template, "--x", "0.1", "--y", "0.2", "--text", "Name")
	f.mustRun(t, "labels", "add", f.template, "--text", "Phone")

	out := f.mustRun(t, "preview", f.template, "--data", f.data, "--name", "{{Name}}", "--email-to", "{{Email}}")

	assert.Contains(t, out, "file: Ada.pdf\n")
	assert.Contains(t, out, `page 1  x=61.20 y=621.60  Helvetica 12pt  "Ada"`)
	assert.Contains(t, out, `"{Phone}"`)
	assert.Contains(t, out, "email: mailto:ada@example.com")
}

func TestPreview_RowOutOfRange(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.run(t, "preview", f.template, "--data", f.data, "--row", "3")
	assert.EqualError(t, err, "row 3 is outside the data's 2 rows")
}

func TestExportRow(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "labels", "add", f.template, "--x", "0.1", "--y", "0.2", "--text", "Name")
	outDir := filepath.Join(f.dir, "out")

	out := f.mustRun(t, "export", f.template, "--data", f.data, "--row", "2", "--out", outDir, "--name", "{{Name}}")

	path := filepath.Join(outDir, "Grace.pdf")
	assert.Equal(t, path+"\n", out)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	n, err := api.PageCount(bytes.NewReader(data), export.NewConfiguration())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExportRow_DefaultFileName(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "labels", "add", f.template, "--text", "Name")
	outFile := filepath.Join(f.dir, "single.pdf")

	f.mustRun(t, "export", f.template, "--data", f.data, "--row", "1", "--out", outFile)
	_, err := os.Stat(outFile)
	assert.NoError(t, err)
}

func readZip(t *testing.T, path string) (map[string][]byte, []models.ManifestEntry) {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	files := make(map[string][]byte)
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[zf.Name] = b
	}
	var manifest []models.ManifestEntry
	require.NoError(t, json.Unmarshal(files[export.ManifestName], &manifest))
	return files, manifest
}

func TestExportAll(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "labels", "add", f.template, "--text", "Name")
	bundle := filepath.Join(f.dir, "bundle", "letters.zip")

	out := f.mustRun(t, "export", f.template, "--data", f.data, "--out", bundle,
		"--name", "{{Name}}_{{date}}", "--email-to", "{{Email}}", "--email-subject", "Hello {{Name}}")
	assert.Equal(t, "wrote 2 of 2 documents to "+bundle+"\n", out)

	files, manifest := readZip(t, bundle)
	assert.Contains(t, files, "Ada_2026-05-01.pdf")
	assert.Contains(t, files, "Grace_2026-05-01.pdf")
	require.Len(t, manifest, 2)
	assert.Equal(t, models.RowSucceeded, manifest[1].Status)
	require.NotNil(t, manifest[1].Email)
	assert.Equal(t, []string{"grace@example.com"}, manifest[1].Email.To)
	assert.Equal(t, "Hello Grace", manifest[1].Email.Subject)
}

func TestExportAll_JobFile(t *testing.T) {
	f := newFixture(t)
	job := `template: letter.pdf
data: people.csv
output: merged.zip
fileNameTemplate: same
collisionPolicy: suffix
labels:
  - pageIndex: 0
    text: Name
    relativeX: 0.5
    relativeY: 0.5
`
	jobPath := filepath.Join(f.dir, "job.yaml")
	require.NoError(t, os.WriteFile(jobPath, []byte(job), 0o644))

	f.mustRun(t, "export", "--job", jobPath)

	files, manifest := readZip(t, filepath.Join(f.dir, "merged.zip"))
	assert.Contains(t, files, "same.pdf")
	assert.Contains(t, files, "same (2).pdf")
	assert.Equal(t, "same (2).pdf", manifest[1].FileName)

	assert.Empty(t, f.listLabels(t), "job labels are not saved")
}

func TestExportAll_InvalidPolicy(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.run(t, "export", f.template, "--data", f.data, "--failure-policy", "sometimes")
	assert.Error(t, err)
}

func TestExport_MissingData(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.run(t, "export", f.template)
	assert.EqualError(t, err, "no data file given; use --data")
}

func TestLoadJob_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("template: a.pdf\ncolour: red\n"), 0o644))

	_, err := LoadJob(path)
	assert.Error(t, err)
}

func TestLoadJob_ResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte("template: a.pdf\ndata: /abs/rows.csv\nemail:\n  to: \"{{Email}}\"\n"), 0o644))

	job, err := LoadJob(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.pdf"), job.Template)
	assert.Equal(t, "/abs/rows.csv", job.Data)
	require.NotNil(t, job.Email)
	assert.Equal(t, "{{Email}}", job.Email.To)
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	f := newFixture(t)
	f.store = "redis:" + mr.Addr()

	id := strings.TrimSpace(f.mustRun(t, "labels", "add", f.template, "--text", "Name"))
	got := f.listLabels(t)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ID)

	docID, err := identity.HashFile(f.template)
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisKeyPrefix+persistence.LabelsKey(docID, 0)))
}

func TestMemoryStoreLivesWithTheApp(t *testing.T) {
	f := newFixture(t)
	var stdout bytes.Buffer
	app := New().WithOutput(&stdout, &bytes.Buffer{})
	app.storeSpec = "memory"

	kv, release, err := app.openStore(context.Background())
	require.NoError(t, err)
	release()
	again, release, err := app.openStore(context.Background())
	require.NoError(t, err)
	release()
	assert.Same(t, kv, again)

	_, _, err = f.run(t, "--store", "nowhere:", "labels", "ls", f.template)
	assert.EqualError(t, err, `unknown store "nowhere:"`)
}

func TestOpenStore_GCSNeedsBucket(t *testing.T) {
	app := New().WithOutput(&bytes.Buffer{}, &bytes.Buffer{})
	app.storeSpec = "gs:///labels"

	_, _, err := app.openStore(context.Background())
	assert.EqualError(t, err, `store "gs:///labels" names no bucket`)
}

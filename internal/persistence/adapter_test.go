package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

const docID = "3f1c9a"

func label(id string, page int) models.Label {
	return models.Label{ID: id, PageIndex: page, Text: "col-" + id, RelativeX: 0.1, RelativeY: 0.2, FontFamily: "Helvetica", FontSize: 12,
		FontWeight: models.WeightNormal, FontStyle: models.StyleNormal}
}

func TestAdapter_SaveLoadGroupsByPage(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore(0)
	a := NewAdapter(kv, nil)

	in := []models.Label{label("a", 2), label("b", 0), label("c", 5), label("d", 2)}
	require.NoError(t, a.SaveSnapshot(ctx, docID, in, "out_{{index}}"))

	assert.Equal(t, []string{
		"pdfTemplateLabels_3f1c9a_0",
		"pdfTemplateLabels_3f1c9a_2",
		"pdfTemplateLabels_3f1c9a_5",
		"pdfTemplate_fileName_3f1c9a",
	}, kv.Keys())

	snap, err := a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "out_{{index}}", snap.FileNameTemplate)
	assert.Empty(t, snap.Purged)

	// Ascending page order, insertion order within a page.
	require.Len(t, snap.Labels, 4)
	got := make([]string, 0, 4)
	for _, l := range snap.Labels {
		got = append(got, l.ID)
	}
	assert.Equal(t, []string{"b", "a", "d", "c"}, got)
	assert.Equal(t, 0, snap.Labels[0].PageIndex)
	assert.Equal(t, 2, snap.Labels[1].PageIndex)
	assert.Equal(t, 2, snap.Labels[2].PageIndex)
	assert.Equal(t, 5, snap.Labels[3].PageIndex)
	assert.Equal(t, in[0], snap.Labels[1])
}

func TestAdapter_LoadForcesPageIndexFromKey(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore(0)
	a := NewAdapter(kv, nil)

	// Older formats: bare arrays, stale or missing pageIndex.
	require.NoError(t, kv.Set(ctx, LabelsKey(docID, 0), `[{"id":"a","pageIndex":7}]`))
	require.NoError(t, kv.Set(ctx, LabelsKey(docID, 2), `[{"id":"b"},{"id":"c","pageIndex":0}]`))
	require.NoError(t, kv.Set(ctx, LabelsKey(docID, 5), `{"version":1,"labels":[{"id":"d","pageIndex":1}]}`))

	snap, err := a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	require.Len(t, snap.Labels, 4)

	want := map[string]int{"a": 0, "b": 2, "c": 2, "d": 5}
	for _, l := range snap.Labels {
		assert.Equal(t, want[l.ID], l.PageIndex, "label %s", l.ID)
	}
}

func TestAdapter_LoadPurgesInvalidRecords(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore(0)
	a := NewAdapter(kv, nil)

	require.NoError(t, kv.Set(ctx, LabelsKey(docID, 0), `[{"id":"ok"}]`))
	require.NoError(t, kv.Set(ctx, LabelsKey(docID, 1), `{"not":"a list"}`))
	require.NoError(t, kv.Set(ctx, LabelsKey(docID, 3), `[{"text":"no id"}]`))

	snap, err := a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	require.Len(t, snap.Labels, 1)
	assert.Equal(t, "ok", snap.Labels[0].ID)
	assert.Equal(t, []int{1, 3}, snap.Purged)

	_, found, _ := kv.Get(ctx, LabelsKey(docID, 1))
	assert.False(t, found)
	_, found, _ = kv.Get(ctx, LabelsKey(docID, 3))
	assert.False(t, found)
}

func TestAdapter_LoadIgnoresPagesBeyondCeiling(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore(0)
	a := NewAdapter(kv, nil)

	require.NoError(t, kv.Set(ctx, LabelsKey(docID, MaxPages), `[{"id":"far"}]`))
	snap, err := a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	assert.Empty(t, snap.Labels)
	assert.Equal(t, "", snap.FileNameTemplate)
}

func TestAdapter_SaveOverwritesAndPrunesPages(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore(0)
	a := NewAdapter(kv, nil)

	require.NoError(t, a.SaveSnapshot(ctx, docID, []models.Label{label("a", 0), label("b", 1)}, ""))
	require.NoError(t, a.SaveSnapshot(ctx, docID, []models.Label{label("c", 0)}, ""))

	snap, err := a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	require.Len(t, snap.Labels, 1)
	assert.Equal(t, "c", snap.Labels[0].ID)
}

// countingKV counts removals.
type countingKV struct {
	*MemoryStore
	removed []string
}

func (c *countingKV) Remove(ctx context.Context, key string) error {
	c.removed = append(c.removed, key)
	return c.MemoryStore.Remove(ctx, key)
}

func TestAdapter_PrunesOnlyKnownPages(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore(0)
	require.NoError(t, NewAdapter(mem, nil).SaveSnapshot(ctx, docID, []models.Label{label("a", 0), label("b", 2)}, ""))

	kv := &countingKV{MemoryStore: mem}
	a := NewAdapter(kv, nil)
	snap, err := a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	require.Len(t, snap.Labels, 2)

	require.NoError(t, a.SaveSnapshot(ctx, docID, []models.Label{label("a", 0)}, ""))
	assert.Equal(t, []string{LabelsKey(docID, 2)}, kv.removed)

	kv.removed = nil
	require.NoError(t, a.SaveSnapshot(ctx, docID, []models.Label{label("a", 0), label("c", 4)}, ""))
	assert.Empty(t, kv.removed)

	kv.removed = nil
	require.NoError(t, a.SaveSnapshot(ctx, docID, nil, ""))
	assert.ElementsMatch(t, []string{LabelsKey(docID, 0), LabelsKey(docID, 4)}, kv.removed)

	snap, err = a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	assert.Empty(t, snap.Labels)
}

func TestAdapter_FirstSaveSweepsAllPages(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore(0)
	require.NoError(t, NewAdapter(mem, nil).SaveSnapshot(ctx, docID, []models.Label{label("old", 7)}, ""))

	kv := &countingKV{MemoryStore: mem}
	a := NewAdapter(kv, nil)
	require.NoError(t, a.SaveSnapshot(ctx, docID, []models.Label{label("a", 0)}, ""))
	assert.Len(t, kv.removed, MaxPages-1)

	snap, err := a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	require.Len(t, snap.Labels, 1)
	assert.Equal(t, "a", snap.Labels[0].ID)
}

func TestAdapter_DocumentsAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemoryStore(0), nil)

	require.NoError(t, a.SaveSnapshot(ctx, "doc1", []models.Label{label("a", 0)}, "one"))
	require.NoError(t, a.SaveSnapshot(ctx, "doc2", []models.Label{label("b", 0)}, "two"))

	snap, err := a.LoadSnapshot(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, snap.Labels, 1)
	assert.Equal(t, "a", snap.Labels[0].ID)
	assert.Equal(t, "one", snap.FileNameTemplate)
}

func TestAdapter_SaveReportsFailedPagesAndContinues(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore(0)
	a := NewAdapter(kv, nil)

	big := label("big", 1)
	big.Text = strings.Repeat("x", 4096)
	labels := []models.Label{label("a", 0), big, label("c", 2)}

	// Room for the small pages and the file name, not for page 1.
	kv.quota = 1500
	err := a.SaveSnapshot(ctx, docID, labels, "name")
	require.Error(t, err)

	var saveErr *SaveError
	require.True(t, errors.As(err, &saveErr))
	assert.Equal(t, []int{1}, saveErr.FailedPages())
	assert.NoError(t, saveErr.FileName)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Contains(t, err.Error(), "page 2")

	kv.quota = 0
	snap, err := a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	ids := []string{}
	for _, l := range snap.Labels {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []string{"a", "c"}, ids)
	assert.Equal(t, "name", snap.FileNameTemplate)
}

func TestAdapter_FailedPageKeepsPreviousRecord(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore(0)
	a := NewAdapter(kv, nil)

	require.NoError(t, a.SaveSnapshot(ctx, docID, []models.Label{label("old", 0)}, ""))

	big := label("new", 0)
	big.Text = strings.Repeat("y", 4096)
	kv.quota = kv.Used() + 100
	err := a.SaveSnapshot(ctx, docID, []models.Label{big}, "")
	require.Error(t, err)

	kv.quota = 0
	snap, err := a.LoadSnapshot(ctx, docID)
	require.NoError(t, err)
	require.Len(t, snap.Labels, 1)
	assert.Equal(t, "old", snap.Labels[0].ID)
}

func TestAdapter_SaveRejectsPagesBeyondCeiling(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemoryStore(0), nil)

	err := a.SaveSnapshot(ctx, docID, []models.Label{label("a", 0), label("z", MaxPages)}, "")
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, []int{MaxPages}, saveErr.FailedPages())
}

func TestAdapter_RequiresDocumentID(t *testing.T) {
	ctx := context.Background()
	a := NewAdapter(NewMemoryStore(0), nil)

	assert.ErrorIs(t, a.SaveSnapshot(ctx, "", nil, ""), ErrNoDocument)
	_, err := a.LoadSnapshot(ctx, "")
	assert.ErrorIs(t, err, ErrNoDocument)
}

type brokenKV struct{ MemoryStore }

func (b *brokenKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("unavailable")
}

func TestAdapter_LoadSurfacesReadErrors(t *testing.T) {
	a := NewAdapter(&brokenKV{}, nil)
	_, err := a.LoadSnapshot(context.Background(), docID)
	assert.Error(t, err)
}

func TestAdapter_EmailTemplates(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore(0)
	a := NewAdapter(kv, nil)

	_, found, err := a.LoadEmailTemplates(ctx, docID)
	require.NoError(t, err)
	assert.False(t, found)

	want := models.EmailTemplates{To: "{{Email}}", Subject: "Hi {{Name}}", Body: "Body"}
	require.NoError(t, a.SaveEmailTemplates(ctx, docID, want))

	got, found, err := a.LoadEmailTemplates(ctx, docID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, kv.Set(ctx, EmailKey(docID), "{broken"))
	_, found, err = a.LoadEmailTemplates(ctx, docID)
	require.NoError(t, err)
	assert.False(t, found)
	_, found, _ = kv.Get(ctx, EmailKey(docID))
	assert.False(t, found)
}

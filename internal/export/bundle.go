package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// ManifestName is the bundle entry listing every row's outcome.
const ManifestName = "manifest.json"

// CollisionPolicy decides what happens when two rows resolve to the same
// file name.
type CollisionPolicy string

const (
	// Overwrite keeps only the later row's document under the shared name.
	Overwrite CollisionPolicy = "overwrite"
	// Suffix renames later documents "name (2).pdf", "name (3).pdf", ...
	Suffix CollisionPolicy = "suffix"
)

// ParseCollisionPolicy parses a policy name. The empty string is Overwrite.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Overwrite:
		return Overwrite, nil
	case Suffix:
		return Suffix, nil
	default:
		return "", fmt.Errorf("unknown collision policy %q", s)
	}
}

// File is a document as it is placed in a bundle.
type File struct {
	Name string
	Row  int
	Data []byte
}

// Arrange applies policy to the outputs of batch. It returns the files to
// emit, in row order, and a copy of the manifest with final names. Under
// Overwrite an entry whose document was replaced by a later row is marked
// Overwrote.
func Arrange(batch Batch, policy CollisionPolicy) ([]File, []models.ManifestEntry) {
	manifest := make([]models.ManifestEntry, len(batch.Manifest))
	copy(manifest, batch.Manifest)
	entryByRow := make(map[int]int, len(manifest))
	for i, m := range manifest {
		entryByRow[m.Row] = i
	}

	files := make([]File, 0, len(batch.Outputs))
	taken := make(map[string]int) // name -> index in files
	for _, out := range batch.Outputs {
		name := out.FileName
		if prev, dup := taken[name]; dup {
			if policy == Suffix {
				name = uniqueName(name, taken)
			} else {
				if i, ok := entryByRow[files[prev].Row]; ok {
					manifest[i].Overwrote = true
				}
				files[prev] = File{Name: name, Row: out.Row, Data: out.Data}
				continue
			}
		}
		taken[name] = len(files)
		files = append(files, File{Name: name, Row: out.Row, Data: out.Data})
		if i, ok := entryByRow[out.Row]; ok {
			manifest[i].FileName = name
		}
	}
	return files, manifest
}

func uniqueName(name string, taken map[string]int) string {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// WriteBundle writes files and the manifest as a zip archive.
func WriteBundle(w io.Writer, files []File, manifest []models.ManifestEntry) error {
	zw := zip.NewWriter(w)
	modified := time.Now()

	for _, f := range files {
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return fmt.Errorf("failed to add %s to bundle: %w", f.Name, err)
		}
		if _, err := fw.Write(f.Data); err != nil {
			return fmt.Errorf("failed to write %s to bundle: %w", f.Name, err)
		}
	}

	fw, err := zw.CreateHeader(&zip.FileHeader{Name: ManifestName, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return fmt.Errorf("failed to add manifest to bundle: %w", err)
	}
	enc := json.NewEncoder(fw)
	enc.SetIndent("", "  ")
	if manifest == nil {
		manifest = []models.ManifestEntry{}
	}
	if err := enc.Encode(manifest); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize bundle: %w", err)
	}
	return nil
}

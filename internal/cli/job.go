package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Lllllllleong/pdfmailmerge/internal/models"
)

// Job is a saved export run. Relative paths are resolved against the
// directory of the job file. Command line flags take precedence.
//
//	template: letter.pdf
//	data: people.csv
//	output: out/letters.zip
//	fileNameTemplate: "{{Name}}_{{date}}"
//	failurePolicy: isolate
//	collisionPolicy: suffix
//	email:
//	  to: "{{Email}}"
//	  subject: "Your letter"
//	labels:
//	  - pageIndex: 0
//	    text: Name
//	    relativeX: 0.1
//	    relativeY: 0.2
type Job struct {
	Template         string                 `yaml:"template"`
	Data             string                 `yaml:"data"`
	Output           string                 `yaml:"output"`
	FileNameTemplate string                 `yaml:"fileNameTemplate"`
	FailurePolicy    string                 `yaml:"failurePolicy"`
	CollisionPolicy  string                 `yaml:"collisionPolicy"`
	Email            *models.EmailTemplates `yaml:"email"`
	// Labels, when present, replace the stored labels for this run.
	Labels []models.Label `yaml:"labels"`
}

// LoadJob reads a job file. Unknown keys are rejected.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var job Job
	if err := dec.Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	job.Template = resolvePath(dir, job.Template)
	job.Data = resolvePath(dir, job.Data)
	job.Output = resolvePath(dir, job.Output)
	return &job, nil
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

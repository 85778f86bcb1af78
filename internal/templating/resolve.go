// Package templating substitutes {{name}} placeholders in user supplied
// strings such as file names and email fields.
package templating

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the format of the synthetic date variable.
const DateLayout = "2006-01-02"

// Synthetic variable names.
const (
	VarIndex    = "index"
	VarFilename = "filename"
	VarDate     = "date"
)

// DefaultFileNameTemplate is used when no file name template was saved.
const DefaultFileNameTemplate = "generated_{{index}}_{{filename}}"

var placeholder = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Variables maps placeholder names to values.
type Variables map[string]any

// Resolve replaces each {{name}} with the string form of vars[name]. Unknown
// names keep their literal placeholder so a partially resolved string stays
// visible instead of silently losing data.
func Resolve(template string, vars Variables) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := strings.TrimSpace(match[2 : len(match)-2])
		v, ok := vars[key]
		if !ok || v == nil {
			return match
		}
		return Stringify(v)
	})
}

// Placeholders lists the trimmed names referenced by template, in order of
// first appearance.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		name := strings.TrimSpace(m[1])
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Stringify renders a scalar the way it is written into documents and names.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(DateLayout)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// BaseName strips the directory and extension from a template file name.
func BaseName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// RowVariables merges a data row with the synthetic index, filename and date
// variables. The synthetic values are written last and shadow same-named
// columns in the returned mapping only.
func RowVariables(row map[string]any, index int, templateName string, date time.Time) Variables {
	vars := make(Variables, len(row)+3)
	for k, v := range row {
		vars[k] = v
	}
	vars[VarIndex] = index
	vars[VarFilename] = BaseName(templateName)
	vars[VarDate] = date.Format(DateLayout)
	return vars
}

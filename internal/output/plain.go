package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ylchen07/chefkit/pkg/models"
)

// PlainFormatter outputs plain text (one item per line)
type PlainFormatter struct{}

// NewPlainFormatter creates a new plain text formatter
func NewPlainFormatter() *PlainFormatter {
	return &PlainFormatter{}
}

// FormatEntities formats entities as plain text, one name per line followed
// by any projected fields as key=value
func (f *PlainFormatter) FormatEntities(entities []*models.EntitySummary) (string, error) {
	if len(entities) == 0 {
		return "", nil
	}

	lines := make([]string, len(entities))
	for i, e := range entities {
		parts := []string{e.Name}
		for _, k := range sortedKeys(e.Fields) {
			parts = append(parts, k+"="+scalar(e.Fields[k]))
		}
		lines[i] = strings.Join(parts, "\t")
	}

	return strings.Join(lines, "\n"), nil
}

// FormatDocument formats a document as "key: value" lines sorted by key.
// Nested values are printed as compact JSON.
func (f *PlainFormatter) FormatDocument(doc map[string]any) (string, error) {
	if len(doc) == 0 {
		return "", nil
	}

	lines := make([]string, 0, len(doc))
	for _, k := range sortedKeys(doc) {
		lines = append(lines, k+": "+scalar(doc[k]))
	}
	return strings.Join(lines, "\n"), nil
}

// FormatStrings formats values as plain text (one per line)
func (f *PlainFormatter) FormatStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}

	return strings.Join(values, "\n"), nil
}

// FormatInstances formats instances as name, organization and server URL;
// the default instance is marked with a star
func (f *PlainFormatter) FormatInstances(instances []*models.InstanceInfo) (string, error) {
	if len(instances) == 0 {
		return "", nil
	}

	lines := make([]string, len(instances))
	for i, inst := range instances {
		name := inst.Name
		if inst.Default {
			name += " *"
		}
		lines[i] = fmt.Sprintf("%s\t%s\t%s", name, inst.Organization, inst.ServerURL)
	}
	return strings.Join(lines, "\n"), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", t)
	}
}

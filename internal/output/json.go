package output

import (
	"encoding/json"

	"github.com/ylchen07/chefkit/pkg/models"
)

// JSONFormatter outputs JSON format
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// FormatEntities formats entity summaries as JSON
func (f *JSONFormatter) FormatEntities(entities []*models.EntitySummary) (string, error) {
	return f.marshal(entities)
}

// FormatDocument formats a Chef document as JSON
func (f *JSONFormatter) FormatDocument(doc map[string]any) (string, error) {
	return f.marshal(doc)
}

// FormatStrings formats a list of names as JSON
func (f *JSONFormatter) FormatStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	return f.marshal(values)
}

// FormatInstances formats configured instances as JSON
func (f *JSONFormatter) FormatInstances(instances []*models.InstanceInfo) (string, error) {
	return f.marshal(instances)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

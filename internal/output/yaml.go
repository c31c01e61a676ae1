package output

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ylchen07/chefkit/pkg/models"
)

// YAMLFormatter outputs YAML format
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// FormatEntities formats entity summaries as YAML
func (f *YAMLFormatter) FormatEntities(entities []*models.EntitySummary) (string, error) {
	return f.marshal(entities)
}

// FormatDocument formats a Chef document as YAML
func (f *YAMLFormatter) FormatDocument(doc map[string]any) (string, error) {
	return f.marshal(doc)
}

// FormatStrings formats a list of names as YAML
func (f *YAMLFormatter) FormatStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	return f.marshal(values)
}

// FormatInstances formats configured instances as YAML
func (f *YAMLFormatter) FormatInstances(instances []*models.InstanceInfo) (string, error) {
	return f.marshal(instances)
}

func (f *YAMLFormatter) marshal(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(string(data), "\n"), nil
}

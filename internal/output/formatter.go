package output

import (
	"github.com/ylchen07/chefkit/pkg/models"
)

// Format represents the output format type
type Format string

const (
	// FormatPlain is plain text format (one item per line)
	FormatPlain Format = "plain"
	// FormatJSON is JSON format
	FormatJSON Format = "json"
	// FormatYAML is YAML format
	FormatYAML Format = "yaml"
)

// Formatter formats data for output
type Formatter interface {
	FormatEntities(entities []*models.EntitySummary) (string, error)
	FormatDocument(doc map[string]any) (string, error)
	FormatStrings(values []string) (string, error)
	FormatInstances(instances []*models.InstanceInfo) (string, error)
}

// Package catalog loads the static allow-list of queryable tables and
// document collections. The default catalog ships embedded in the binary and
// can be overridden with an external YAML file.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

//go:embed catalog.yaml
var embedded []byte

// Load parses the catalog at path, or the embedded default when path is empty.
func Load(path string) (domain.Catalog, error) {
	raw := embedded
	if path != "" {
		external, err := os.ReadFile(path)
		if err != nil {
			return domain.Catalog{}, fmt.Errorf("read catalog file: %w", err)
		}
		raw = external
	}

	var cat domain.Catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return domain.Catalog{}, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return domain.Catalog{}, fmt.Errorf("validate catalog: %w", err)
	}
	return cat, nil
}

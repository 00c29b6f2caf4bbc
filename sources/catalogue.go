package sources

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/shopscout/models"
)

//go:embed sources.yaml
var defaultCatalogue []byte

type catalogueFile struct {
	Sources []Spec `yaml:"sources"`
}

// Catalogue is the ordered, validated set of sources a process scrapes.
type Catalogue struct {
	specs []Spec
	index map[string]int
}

// Load reads the catalogue from path, or the embedded default when path is empty.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Parse(defaultCatalogue)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source catalogue: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded catalogue. It panics if the embedded file is
// invalid, which only a broken build can cause.
func Default() *Catalogue {
	c, err := Parse(defaultCatalogue)
	if err != nil {
		panic(fmt.Sprintf("embedded source catalogue: %v", err))
	}
	return c
}

// Parse decodes and validates a YAML catalogue.
func Parse(data []byte) (*Catalogue, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode source catalogue: %w", err)
	}
	return New(f.Sources...)
}

// New validates specs and builds a catalogue that preserves their order.
func New(specs ...Spec) (*Catalogue, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("source catalogue is empty")
	}
	c := &Catalogue{
		specs: make([]Spec, 0, len(specs)),
		index: make(map[string]int, len(specs)),
	}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.index[s.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", s.ID)
		}
		c.index[s.ID] = len(c.specs)
		c.specs = append(c.specs, s)
	}
	return c, nil
}

// Specs returns every source in configured order.
func (c *Catalogue) Specs() []Spec {
	out := make([]Spec, len(c.specs))
	copy(out, c.specs)
	return out
}

// IDs returns source IDs in configured order.
func (c *Catalogue) IDs() []string {
	ids := make([]string, len(c.specs))
	for i, s := range c.specs {
		ids[i] = s.ID
	}
	return ids
}

// Get looks up a source by ID.
func (c *Catalogue) Get(id string) (Spec, bool) {
	i, ok := c.index[id]
	if !ok {
		return Spec{}, false
	}
	return c.specs[i], true
}

// Select returns the named sources in configured order. An empty list
// selects everything; unknown IDs are an input error.
func (c *Catalogue) Select(ids []string) ([]Spec, error) {
	if len(ids) == 0 {
		return c.Specs(), nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := c.index[id]; !ok {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("unknown source %q", id), nil)
		}
		want[id] = true
	}
	out := make([]Spec, 0, len(want))
	for _, s := range c.specs {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

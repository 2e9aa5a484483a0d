package store

import (
	"io"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML-loadable reference data set consumed by the seed
// command and by tests.
type Fixture struct {
	States    []string           `yaml:"states"`
	Brands    []string           `yaml:"brands"`
	Products  []FixtureProduct   `yaml:"products"`
	AllowList []FixtureAllowRow  `yaml:"allow_list"`
	Knowledge []FixtureKnowledge `yaml:"knowledge"`
	Files     []FixtureFile      `yaml:"files"`
}

// FixtureProduct declares a product under a brand.
type FixtureProduct struct {
	Brand string `yaml:"brand"`
	Name  string `yaml:"name"`
}

// FixtureAllowRow asserts a product is legal in a state.
type FixtureAllowRow struct {
	State   string `yaml:"state"`
	Brand   string `yaml:"brand"`
	Product string `yaml:"product"`
	Details string `yaml:"details"`
}

// FixtureKnowledge declares a knowledge base entry.
type FixtureKnowledge struct {
	Title     string    `yaml:"title"`
	Content   string    `yaml:"content"`
	Tags      []string  `yaml:"tags"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// FixtureFile declares a file index record.
type FixtureFile struct {
	FileName      string   `yaml:"file_name"`
	FileURL       string   `yaml:"file_url"`
	MimeType      string   `yaml:"mime_type"`
	Brand         string   `yaml:"brand"`
	Category      string   `yaml:"category"`
	Subcategories []string `yaml:"subcategories"`
}

// LoadFixture decodes a fixture from YAML.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var fx Fixture
	if err := yaml.NewDecoder(r).Decode(&fx); err != nil {
		return nil, eris.Wrap(err, "store: decode fixture")
	}
	return &fx, nil
}

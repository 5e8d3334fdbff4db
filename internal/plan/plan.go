// Package plan reads a snapshot of the user's plan items from YAML so the
// CLI can feed the refresh controller without the UI.
package plan

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"gopkg.in/yaml.v3"
)

// Item is one plan entry. Completed items still count toward their horizon's
// task list; only their text reaches the fingerprint.
type Item struct {
	ID        string `yaml:"id,omitempty"`
	Text      string `yaml:"text"`
	Scale     string `yaml:"scale"`
	Completed bool   `yaml:"completed,omitempty"`
}

// Plan is an ordered list of items across all horizons.
type Plan struct {
	Items []Item `yaml:"items"`
}

// #region load

// Load reads a plan file from disk.
func Load(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()
	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Decode parses a plan and checks that every item names a known horizon and
// carries text.
func Decode(r io.Reader) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	for i, it := range p.Items {
		if strings.TrimSpace(it.Text) == "" {
			return nil, fmt.Errorf("item %d: empty text", i)
		}
		b, err := horizon.Parse(it.Scale)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		p.Items[i].Scale = string(b)
	}
	return &p, nil
}

// #endregion load

// #region query

// Tasks returns the texts of b's items in file order.
func (p *Plan) Tasks(b horizon.Bucket) []string {
	var out []string
	for _, it := range p.Items {
		if it.Scale == string(b) {
			out = append(out, it.Text)
		}
	}
	return out
}

// Buckets returns the horizons that have at least one item, in horizon order.
func (p *Plan) Buckets() []horizon.Bucket {
	var out []horizon.Bucket
	for _, b := range horizon.All() {
		if len(p.Tasks(b)) > 0 {
			out = append(out, b)
		}
	}
	return out
}

// #endregion query

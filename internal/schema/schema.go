// Package schema holds the embedded dataset registry: how raw headers map to
// normalized column names, which values count as missing, which columns get
// typed, and the business bounds each numeric column must respect.
package schema

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var rawSchema []byte

// Column type labels used across normalization and the audit.
const (
	TypeText  = "text"
	TypeInt   = "int"
	TypeFloat = "float"
)

// Bounds is an inclusive business range for one numeric column.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Dataset describes how one tabular dataset is renamed, typed, and
// range-checked.
type Dataset struct {
	Name       string            `yaml:"-"`
	Key        string            `yaml:"key"`
	SheetHints []string          `yaml:"sheet_hints"`
	Required   []string          `yaml:"required"`
	Renames    map[string]string `yaml:"renames"`
	Text       []string          `yaml:"text"`
	Int        []string          `yaml:"int"`
	Float      []string          `yaml:"float"`
	Bounds     map[string]Bounds `yaml:"bounds"`
}

// Geo describes the parcel snapshot contract.
type Geo struct {
	IDColumn       string   `yaml:"id_column"`
	ProducerColumn string   `yaml:"producer_column"`
	DeclaredColumn string   `yaml:"declared_column"`
	Required       []string `yaml:"required"`
}

// Registry is the parsed schema registry.
type Registry struct {
	NAValues  []string            `yaml:"na_values"`
	Datasets  map[string]*Dataset `yaml:"datasets"`
	Parcelles Geo                 `yaml:"parcelles"`

	naSet map[string]struct{}
}

// Load parses the embedded registry.
func Load() (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(rawSchema, &r); err != nil {
		return nil, eris.Wrap(err, "schema: parse registry")
	}

	r.naSet = make(map[string]struct{}, len(r.NAValues))
	for _, v := range r.NAValues {
		r.naSet[strings.ToLower(strings.TrimSpace(v))] = struct{}{}
	}
	for name, ds := range r.Datasets {
		ds.Name = name
	}

	return &r, nil
}

// Dataset returns the named dataset contract.
func (r *Registry) Dataset(name string) (*Dataset, error) {
	ds, ok := r.Datasets[name]
	if !ok {
		return nil, eris.Errorf("schema: unknown dataset %q", name)
	}
	return ds, nil
}

// IsNA reports whether a raw cell value counts as missing. Matching is
// case-insensitive on the trimmed value; "Non" and "Inconnu" stay real
// answers.
func (r *Registry) IsNA(s string) bool {
	_, ok := r.naSet[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// MatchSheet maps a workbook sheet name to a dataset name by substring
// hint. Returns false when no dataset claims the sheet.
func (r *Registry) MatchSheet(sheet string) (string, bool) {
	lower := strings.ToLower(sheet)
	for name, ds := range r.Datasets {
		for _, hint := range ds.SheetHints {
			if strings.Contains(lower, hint) {
				return name, true
			}
		}
	}
	return "", false
}

// Rename maps a raw header to its normalized name. Unmapped headers pass
// through trimmed, so stray columns survive with their original label.
func (d *Dataset) Rename(col string) string {
	trimmed := strings.TrimSpace(col)
	if clean, ok := d.Renames[trimmed]; ok {
		return clean
	}
	return trimmed
}

// TargetType returns the type label a normalized column should coerce to.
func (d *Dataset) TargetType(col string) string {
	for _, c := range d.Int {
		if c == col {
			return TypeInt
		}
	}
	for _, c := range d.Float {
		if c == col {
			return TypeFloat
		}
	}
	return TypeText
}

// TrimmedText reports whether a column is one of the key text columns
// that get whitespace-trimmed during cleaning.
func (d *Dataset) TrimmedText(col string) bool {
	for _, c := range d.Text {
		if c == col {
			return true
		}
	}
	return false
}

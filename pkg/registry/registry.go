// Package registry holds the static whitelist of tables and columns that
// query plans may reference. A Registry is immutable after Parse.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"travelgo-chat/internal/common/errors"
	"travelgo-chat/internal/models"
)

//go:embed schema.yaml
var defaultSchema []byte

const defaultMaxLimit = 50

type schemaFile struct {
	Version  int                    `yaml:"version"`
	MaxLimit int                    `yaml:"max_limit"`
	Tables   map[string]tableConfig `yaml:"tables"`
}

type tableConfig struct {
	PrimaryKey  string   `yaml:"primary_key"`
	Sensitivity string   `yaml:"sensitivity"`
	OwnerColumn string   `yaml:"owner_column"`
	Columns     []string `yaml:"columns"`
}

// Table describes one readable table.
type Table struct {
	Name        string
	PrimaryKey  string
	Sensitivity models.Sensitivity
	OwnerColumn string
	Columns     []string
	columnSet   map[string]struct{}
}

func (t Table) HasColumn(column string) bool {
	_, ok := t.columnSet[column]
	return ok
}

func (t Table) IsPrivate() bool {
	return t.Sensitivity == models.SensitivityPrivate
}

type Registry struct {
	version  int
	maxLimit int
	tables   map[string]Table
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Parse(defaultSchema)
}

// DefaultSchema returns the embedded schema document.
func DefaultSchema() []byte { return defaultSchema }

// Load reads a registry from path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema registry %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML and checks it is self-consistent.
func Parse(data []byte) (*Registry, error) {
	var sf schemaFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("parsing schema registry YAML: %w", err)
	}
	if len(sf.Tables) == 0 {
		return nil, fmt.Errorf("schema registry declares no tables")
	}

	reg := &Registry{
		version:  sf.Version,
		maxLimit: sf.MaxLimit,
		tables:   make(map[string]Table, len(sf.Tables)),
	}
	if reg.maxLimit <= 0 {
		reg.maxLimit = defaultMaxLimit
	}

	for name, tc := range sf.Tables {
		t := Table{
			Name:        name,
			PrimaryKey:  tc.PrimaryKey,
			Sensitivity: models.Sensitivity(tc.Sensitivity),
			OwnerColumn: tc.OwnerColumn,
			Columns:     append([]string(nil), tc.Columns...),
			columnSet:   make(map[string]struct{}, len(tc.Columns)),
		}
		for _, c := range tc.Columns {
			if _, dup := t.columnSet[c]; dup {
				return nil, fmt.Errorf("table %s: duplicate column %q", name, c)
			}
			t.columnSet[c] = struct{}{}
		}

		switch t.Sensitivity {
		case models.SensitivityPublic:
		case models.SensitivityPrivate:
			if t.OwnerColumn == "" {
				return nil, fmt.Errorf("table %s: private tables need owner_column", name)
			}
			if !t.HasColumn(t.OwnerColumn) {
				return nil, fmt.Errorf("table %s: owner_column %q is not a listed column", name, t.OwnerColumn)
			}
		default:
			return nil, fmt.Errorf("table %s: unsupported sensitivity %q", name, tc.Sensitivity)
		}

		if t.PrimaryKey == "" || !t.HasColumn(t.PrimaryKey) {
			return nil, fmt.Errorf("table %s: primary_key %q is not a listed column", name, t.PrimaryKey)
		}
		reg.tables[name] = t
	}

	return reg, nil
}

func (r *Registry) Version() int { return r.version }

func (r *Registry) MaxLimit() int { return r.maxLimit }

// Table looks up a table entry by name.
func (r *Registry) Table(name string) (Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Tables returns the table names in sorted order.
func (r *Registry) Tables() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidatePlan rejects any plan that references something outside the
// whitelist, or that reads a private table without binding it to the caller.
func (r *Registry) ValidatePlan(plan models.QueryPlan) error {
	violation := func(format string, args ...interface{}) error {
		return errors.NewSchemaViolationError(plan.Key, fmt.Sprintf(format, args...))
	}

	if plan.Key == "" {
		return violation("plan has no context key")
	}
	t, ok := r.tables[plan.Table]
	if !ok {
		return violation("unknown table %q", plan.Table)
	}
	if len(plan.Columns) == 0 {
		return violation("no columns selected")
	}
	for _, c := range plan.Columns {
		if !t.HasColumn(c) {
			return violation("column %s.%s is not whitelisted", t.Name, c)
		}
	}

	for _, p := range plan.Predicates {
		if !t.HasColumn(p.Column) {
			return violation("predicate column %s.%s is not whitelisted", t.Name, p.Column)
		}
		switch p.Operator {
		case models.OpEq, models.OpGte, models.OpLte:
			if p.Param.Source == models.SourcePlanRows {
				return violation("parent rows may only be matched with %q", models.OpIn)
			}
		case models.OpIn:
			if p.Param.Source != models.SourcePlanRows {
				return violation("operator %q needs parent rows", p.Operator)
			}
			if plan.DependsOn == "" || plan.DependsOn == plan.Key {
				return violation("operator %q needs a parent plan", p.Operator)
			}
		default:
			return violation("operator %q is not allowed", p.Operator)
		}
		switch p.Param.Source {
		case models.SourceLiteral, models.SourceClock, models.SourceUserSlot, models.SourcePlanRows:
		case models.SourceCallerIdentity:
			if p.Column != t.OwnerColumn {
				return violation("caller identity bound to non-owner column %s", p.Column)
			}
		default:
			return violation("parameter source %q is not allowed", p.Param.Source)
		}
	}

	if plan.Keyword != nil {
		if len(plan.Keyword.Columns) == 0 || len(plan.Keyword.Terms) == 0 {
			return violation("keyword filter needs columns and terms")
		}
		for _, c := range plan.Keyword.Columns {
			if !t.HasColumn(c) {
				return violation("keyword column %s.%s is not whitelisted", t.Name, c)
			}
		}
		for _, term := range plan.Keyword.Terms {
			if _, ok := term.Value.(string); !ok {
				return violation("keyword terms must be strings")
			}
		}
	}

	for _, o := range plan.OrderBy {
		if !t.HasColumn(o.Column) {
			return violation("order column %s.%s is not whitelisted", t.Name, o.Column)
		}
	}

	if plan.Limit < 1 || plan.Limit > r.maxLimit {
		return violation("limit %d outside 1..%d", plan.Limit, r.maxLimit)
	}

	if t.IsPrivate() && !plan.HasIdentityPredicate(t.OwnerColumn) {
		return violation("private table %s read without %s bound to caller", t.Name, t.OwnerColumn)
	}

	return nil
}

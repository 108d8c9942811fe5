package quality

import (
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

type CheckKind string

const (
	// ValueRange records a column's min and max value in native order.
	ValueRange CheckKind = "value_range"
	// LengthRange records the min and max text length of a column's values.
	LengthRange CheckKind = "length_range"
	// DistinctCount records distinct and total non-null values.
	DistinctCount CheckKind = "distinct_count"
)

// ColumnRule binds one statistic to a recognized column name. OnlyTag limits
// the rule to files carrying that type tag.
type ColumnRule struct {
	Column  string    `yaml:"column"`
	Check   CheckKind `yaml:"check"`
	OnlyTag string    `yaml:"only_tag,omitempty"`
}

func (r ColumnRule) applies(column, tag string) bool {
	return r.Column == column && (r.OnlyTag == "" || r.OnlyTag == tag)
}

// DefaultColumnRules describes the two known delivery schemas: the "id"
// file keyed by txn_id and the "upc" file.
func DefaultColumnRules() []ColumnRule {
	return []ColumnRule{
		{Column: "transactionDateTime", Check: ValueRange},
		{Column: "units", Check: ValueRange},
		{Column: "xid", Check: LengthRange},
		{Column: "txn_id", Check: LengthRange},
		{Column: "upc", Check: LengthRange},
		{Column: "txn_id", Check: DistinctCount, OnlyTag: "id"},
	}
}

type columnRulesFile struct {
	ColumnRules []ColumnRule `yaml:"column_rules"`
}

// LoadColumnRules reads a rule table from YAML. An empty path yields the
// defaults.
func LoadColumnRules(path string) ([]ColumnRule, error) {
	if path == "" {
		return DefaultColumnRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read column rules")
	}
	var f columnRulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse column rules yaml")
	}
	if len(f.ColumnRules) == 0 {
		return nil, errors.Newf("%s: no column_rules defined", path)
	}
	for i, r := range f.ColumnRules {
		if r.Column == "" {
			return nil, errors.Newf("%s: rule %d has no column", path, i)
		}
		switch r.Check {
		case ValueRange, LengthRange, DistinctCount:
		default:
			return nil, errors.Newf("%s: rule %d has unknown check %q", path, i, r.Check)
		}
	}
	return f.ColumnRules, nil
}

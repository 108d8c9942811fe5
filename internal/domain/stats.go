package domain

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Measures recorded per recognized column.
const (
	MeasureMaxValue       = "max value"
	MeasureMinValue       = "min value"
	MeasureMaxLength      = "max length"
	MeasureMinLength      = "min length"
	MeasureDistinctValues = "distinct values"
	MeasureCount          = "count"
)

type Statistic struct {
	Column  string
	Measure string
	Value   string
}

// Name is the flat key used in reports, e.g. "txn_id max length".
func (s Statistic) Name() string {
	return s.Column + " " + s.Measure
}

// StatsRecord is the quality report for a single file. Statistics keep the
// order in which they were computed.
type StatsRecord struct {
	FileName string
	Rows     string
	Columns  string
	Headers  []string
	Stats    []Statistic
}

func (r *StatsRecord) Add(column, measure, value string) {
	r.Stats = append(r.Stats, Statistic{Column: column, Measure: measure, Value: value})
}

func (r StatsRecord) Get(name string) (string, bool) {
	for _, s := range r.Stats {
		if s.Name() == name {
			return s.Value, true
		}
	}
	return "", false
}

// MarshalJSON writes the record as one flat object: the file summary keys
// first, then every statistic in computed order.
func (r StatsRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	headers := r.Headers
	if headers == nil {
		headers = []string{}
	}
	if err := write("file name", r.FileName); err != nil {
		return nil, err
	}
	if err := write("file rows", r.Rows); err != nil {
		return nil, err
	}
	if err := write("file columns", r.Columns); err != nil {
		return nil, err
	}
	if err := write("column headers", headers); err != nil {
		return nil, err
	}
	for _, s := range r.Stats {
		if err := write(s.Name(), s.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// QualityResult maps a file type tag to that file's record.
type QualityResult map[string]StatsRecord

func (q QualityResult) Tags() []string {
	tags := make([]string, 0, len(q))
	for tag := range q {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// RunResults maps a child ticket key to its quality result.
type RunResults map[string]QualityResult

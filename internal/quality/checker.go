package quality

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"turnpp/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Checker loads one delimited file and computes its quality record.
type Checker struct {
	rules []ColumnRule
	log   *zap.SugaredLogger
}

func NewChecker(rules []ColumnRule, log *zap.SugaredLogger) *Checker {
	if rules == nil {
		rules = DefaultColumnRules()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Checker{rules: rules, log: log}
}

// Check returns the full statistics record for tf, or an error wrapping
// ErrParse, ErrEmptyData or ErrStatistic. No partial record is returned.
func (c *Checker) Check(tf domain.TypedFile) (domain.StatsRecord, error) {
	name := tf.Name()

	table, err := LoadTable(tf.Path)
	if err != nil {
		c.log.Errorw("data load failed", "file", name, "error", err)
		return domain.StatsRecord{}, err
	}
	if err := table.checkPopulated(); err != nil {
		c.log.Errorw("data check failed", "file", name, "error", err)
		return domain.StatsRecord{}, err
	}

	rec := domain.StatsRecord{
		FileName: name,
		Rows:     humanize.Comma(int64(len(table.Rows))),
		Columns:  humanize.Comma(int64(len(table.Headers))),
		Headers:  append([]string(nil), table.Headers...),
	}

	for idx, column := range table.Headers {
		for _, rule := range c.rules {
			if !rule.applies(column, tf.Tag) {
				continue
			}
			values := table.NonNull(idx)
			if len(values) == 0 {
				err := errors.Wrapf(ErrStatistic, "%s: column %s has no values", rule.Check, column)
				c.log.Errorw("column check failed", "file", name, "column", column, "check", rule.Check, "error", err)
				return domain.StatsRecord{}, err
			}
			switch rule.Check {
			case ValueRange:
				hi, lo := valueRange(values, len(values) < len(table.Rows))
				rec.Add(column, domain.MeasureMaxValue, hi)
				rec.Add(column, domain.MeasureMinValue, lo)
			case LengthRange:
				hi, lo := lengthRange(values)
				rec.Add(column, domain.MeasureMaxLength, strconv.Itoa(hi))
				rec.Add(column, domain.MeasureMinLength, strconv.Itoa(lo))
			case DistinctCount:
				distinct, total := distinctCount(values)
				rec.Add(column, domain.MeasureDistinctValues, humanize.Comma(int64(distinct)))
				rec.Add(column, domain.MeasureCount, humanize.Comma(int64(total)))
			default:
				err := errors.Wrapf(ErrStatistic, "unknown check %q", rule.Check)
				c.log.Errorw("column check failed", "file", name, "column", column, "error", err)
				return domain.StatsRecord{}, err
			}
		}
	}

	c.log.Infow("file checked", "file", name, "tag", tf.Tag, "rows", rec.Rows, "columns", rec.Columns)
	return rec, nil
}

type valueKind int

const (
	kindInt valueKind = iota
	kindFloat
	kindString
)

func inferKind(values []string) valueKind {
	kind := kindInt
	for _, v := range values {
		v = strings.TrimSpace(v)
		if kind == kindInt {
			if _, err := strconv.ParseInt(v, 10, 64); err == nil {
				continue
			}
			kind = kindFloat
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return kindString
		}
	}
	return kind
}

// valueRange returns max and min of non-empty values. Numeric columns
// compare numerically; anything else compares as text, which orders
// ISO-8601 timestamps chronologically. An integer column with nulls is
// reported in float form.
func valueRange(values []string, hasNulls bool) (string, string) {
	switch inferKind(values) {
	case kindInt:
		var hi, lo int64
		for i, v := range values {
			n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if i == 0 || n > hi {
				hi = n
			}
			if i == 0 || n < lo {
				lo = n
			}
		}
		if hasNulls {
			return formatFloat(float64(hi)), formatFloat(float64(lo))
		}
		return strconv.FormatInt(hi, 10), strconv.FormatInt(lo, 10)
	case kindFloat:
		var hi, lo float64
		for i, v := range values {
			f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if i == 0 || f > hi {
				hi = f
			}
			if i == 0 || f < lo {
				lo = f
			}
		}
		return formatFloat(hi), formatFloat(lo)
	default:
		hi, lo := values[0], values[0]
		for _, v := range values[1:] {
			if v > hi {
				hi = v
			}
			if v < lo {
				lo = v
			}
		}
		return hi, lo
	}
}

// formatFloat keeps a decimal point on whole numbers so a float column
// never reads as an integer one.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func lengthRange(values []string) (int, int) {
	var hi, lo int
	for i, v := range values {
		n := utf8.RuneCountInString(v)
		if i == 0 || n > hi {
			hi = n
		}
		if i == 0 || n < lo {
			lo = n
		}
	}
	return hi, lo
}

func distinctCount(values []string) (int, int) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen), len(values)
}

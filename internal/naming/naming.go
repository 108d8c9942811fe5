// Package naming turns a parent ticket summary into the customer name used
// for archive file names.
package naming

import (
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ErrNoRule means no layout of the matching rule fits the word count. This
// is a gap in the rule table, not something to guess around.
var ErrNoRule = errors.New("no name rule matches")

// Wildcard is the FirstWord of the fallback rule.
const Wildcard = "*"

// Layout applies to names with at least MinWords words. Each group lists
// word indexes concatenated into one segment; segments are joined with "_".
type Layout struct {
	MinWords int     `yaml:"min_words"`
	Groups   [][]int `yaml:"groups"`
}

type Rule struct {
	FirstWord string   `yaml:"first_word"`
	Layouts   []Layout `yaml:"layouts"`
}

func DefaultRules() []Rule {
	return []Rule{
		{FirstWord: "Del", Layouts: []Layout{
			{MinWords: 4, Groups: [][]int{{0, 1}, {2, 3}}},
			{MinWords: 3, Groups: [][]int{{0, 1}, {2}}},
		}},
		{FirstWord: "Cytosport", Layouts: []Layout{
			{MinWords: 4, Groups: [][]int{{0}, {1, 2, 3}}},
		}},
		{FirstWord: Wildcard, Layouts: []Layout{
			{MinWords: 3, Groups: [][]int{{0}, {1, 2}}},
			{MinWords: 2, Groups: [][]int{{0}, {1}}},
			{MinWords: 1, Groups: [][]int{{0}}},
		}},
	}
}

type rulesFile struct {
	NameRules []Rule `yaml:"name_rules"`
}

// LoadRules reads a rule table from YAML. An empty path yields the defaults.
func LoadRules(path string) ([]Rule, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read name rules")
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse name rules yaml")
	}
	if len(f.NameRules) == 0 {
		return nil, errors.Newf("%s: no name_rules defined", path)
	}
	for _, r := range f.NameRules {
		if err := r.validate(); err != nil {
			return nil, errors.Wrapf(err, "%s", path)
		}
	}
	return f.NameRules, nil
}

func (r Rule) validate() error {
	if r.FirstWord == "" {
		return errors.New("rule without first_word")
	}
	if len(r.Layouts) == 0 {
		return errors.Newf("rule %q has no layouts", r.FirstWord)
	}
	for _, l := range r.Layouts {
		if l.MinWords < 1 || len(l.Groups) == 0 {
			return errors.Newf("rule %q: layout needs min_words >= 1 and groups", r.FirstWord)
		}
		for _, g := range l.Groups {
			if len(g) == 0 {
				return errors.Newf("rule %q: empty group", r.FirstWord)
			}
			for _, idx := range g {
				if idx < 0 || idx >= l.MinWords {
					return errors.Newf("rule %q: word index %d outside min_words %d", r.FirstWord, idx, l.MinWords)
				}
			}
		}
	}
	return nil
}

type Normalizer struct {
	rules []Rule
}

// New copies rules and orders each rule's layouts from most to fewest words.
func New(rules []Rule) *Normalizer {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		layouts := append([]Layout(nil), r.Layouts...)
		sort.SliceStable(layouts, func(a, b int) bool { return layouts[a].MinWords > layouts[b].MinWords })
		out[i] = Rule{FirstWord: r.FirstWord, Layouts: layouts}
	}
	return &Normalizer{rules: out}
}

// CustomerName derives the normalized name from a ticket summary such as
// "TURN - Del Monte Foods".
func (n *Normalizer) CustomerName(summary string) (string, error) {
	return n.Normalize(SplitWords(summary))
}

func (n *Normalizer) Normalize(words []string) (string, error) {
	if len(words) == 0 {
		return "", errors.Wrap(ErrNoRule, "empty name")
	}
	rule, ok := n.match(words[0])
	if !ok {
		return "", errors.Wrapf(ErrNoRule, "%q", strings.Join(words, " "))
	}
	for _, l := range rule.Layouts {
		if l.MinWords > len(words) {
			continue
		}
		segments := make([]string, 0, len(l.Groups))
		for _, g := range l.Groups {
			var b strings.Builder
			for _, idx := range g {
				b.WriteString(words[idx])
			}
			segments = append(segments, b.String())
		}
		return strings.Join(segments, "_"), nil
	}
	return "", errors.Wrapf(ErrNoRule, "rule %q has no layout for %d words (%q)",
		rule.FirstWord, len(words), strings.Join(words, " "))
}

func (n *Normalizer) match(first string) (Rule, bool) {
	var fallback *Rule
	for i := range n.rules {
		switch n.rules[i].FirstWord {
		case first:
			return n.rules[i], true
		case Wildcard:
			if fallback == nil {
				fallback = &n.rules[i]
			}
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Rule{}, false
}

var capitalizedWordRe = regexp.MustCompile(`[A-Z][a-z]+`)

// SplitWords takes the text after the last "-" of summary and splits it on
// whitespace and before every inner capitalized word. Underscores are
// dropped from the resulting words.
func SplitWords(summary string) []string {
	tail := summary
	if i := strings.LastIndex(tail, "-"); i >= 0 {
		tail = tail[i+1:]
	}
	tail = strings.TrimSpace(tail)

	var b strings.Builder
	last := 0
	for _, loc := range capitalizedWordRe.FindAllStringIndex(tail, -1) {
		if loc[0] == 0 {
			continue
		}
		b.WriteString(tail[last:loc[0]])
		b.WriteByte(' ')
		last = loc[0]
	}
	b.WriteString(tail[last:])

	var words []string
	for _, w := range strings.Fields(b.String()) {
		w = strings.ReplaceAll(w, "_", "")
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

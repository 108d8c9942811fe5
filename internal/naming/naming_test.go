package naming

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomerNameFixtures(t *testing.T) {
	n := New(DefaultRules())
	tests := []struct {
		summary string
		want    string
	}{
		{"TURN Weekly - Del Monte Foods", "DelMonte_Foods"},
		{"TURN Weekly - Del Monte Fresh Produce", "DelMonte_FreshProduce"},
		{"TURN Weekly - DelMonte Foods", "DelMonte_Foods"},
		{"TURN Weekly - Cytosport Muscle Milk Protein", "Cytosport_MuscleMilkProtein"},
		{"TURN Weekly - Colgate Palmolive", "Colgate_Palmolive"},
		{"TURN - Colgate_Palmolive", "Colgate_Palmolive"},
		{"TURN Weekly - Black Box Wines", "Black_BoxWines"},
		{"TURN Weekly - BlackBox Wines", "Black_BoxWines"},
		{"TURN Weekly - Blackbox", "Blackbox"},
		{"Blackbox", "Blackbox"},
	}
	for _, tc := range tests {
		t.Run(tc.summary, func(t *testing.T) {
			got, err := n.CustomerName(tc.summary)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCustomerNameConfigurationGaps(t *testing.T) {
	n := New(DefaultRules())
	for _, summary := range []string{
		"TURN Weekly - Del Monte",
		"TURN Weekly - Cytosport Protein",
		"TURN Weekly - ",
	} {
		_, err := n.CustomerName(summary)
		assert.True(t, errors.Is(err, ErrNoRule), "%q: got %v", summary, err)
	}
}

func TestNormalizeWithoutFallback(t *testing.T) {
	n := New([]Rule{{FirstWord: "Acme", Layouts: []Layout{{MinWords: 1, Groups: [][]int{{0}}}}}})

	got, err := n.Normalize([]string{"Acme", "Corp"})
	require.NoError(t, err)
	assert.Equal(t, "Acme", got)

	_, err = n.Normalize([]string{"Globex"})
	assert.True(t, errors.Is(err, ErrNoRule))
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"Del", "Monte", "Foods"}, SplitWords("X - DelMonte Foods"))
	assert.Equal(t, []string{"Colgate", "Palmolive"}, SplitWords("Colgate_Palmolive"))
	assert.Equal(t, []string{"ABC", "Foods"}, SplitWords(" - ABC Foods "))
	assert.Empty(t, SplitWords("TURN - "))
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()

	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)

	path := filepath.Join(dir, "names.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name_rules:
  - first_word: Acme
    layouts:
      - min_words: 2
        groups: [[0, 1]]
  - first_word: "*"
    layouts:
      - min_words: 1
        groups: [[0]]
`), 0o644))
	rules, err = LoadRules(path)
	require.NoError(t, err)

	got, err := New(rules).CustomerName("TURN - Acme Rockets")
	require.NoError(t, err)
	assert.Equal(t, "AcmeRockets", got)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte(`
name_rules:
  - first_word: Acme
    layouts:
      - min_words: 2
        groups: [[0, 2]]
`), 0o644))
	_, err = LoadRules(bad)
	assert.Error(t, err)
}

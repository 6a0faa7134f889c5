package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeRuleApply(t *testing.T) {
	type tc struct {
		desc     string
		rule     MergeRule
		symbols  []string
		expected []string
	}

	tcs := []tc{
		{
			desc:     "single occurrence",
			rule:     MergeRule{"l", "o"},
			symbols:  []string{"l", "o", "w", EndOfWord},
			expected: []string{"lo", "w", EndOfWord},
		},
		{
			desc:     "every occurrence",
			rule:     MergeRule{"a", "b"},
			symbols:  []string{"a", "b", "c", "a", "b", EndOfWord},
			expected: []string{"ab", "c", "ab", EndOfWord},
		},
		{
			desc:     "overlapping occurrences merge left to right",
			rule:     MergeRule{"a", "a"},
			symbols:  []string{"a", "a", "a", EndOfWord},
			expected: []string{"aa", "a", EndOfWord},
		},
		{
			desc:     "four in a row",
			rule:     MergeRule{"a", "a"},
			symbols:  []string{"a", "a", "a", "a", EndOfWord},
			expected: []string{"aa", "aa", EndOfWord},
		},
		{
			desc:     "end marker",
			rule:     MergeRule{"w", EndOfWord},
			symbols:  []string{"lo", "w", EndOfWord},
			expected: []string{"lo", "w" + EndOfWord},
		},
		{
			desc:     "no match is a no-op",
			rule:     MergeRule{"x", "y"},
			symbols:  []string{"l", "o", "w", EndOfWord},
			expected: []string{"l", "o", "w", EndOfWord},
		},
		{
			desc:     "order matters",
			rule:     MergeRule{"o", "l"},
			symbols:  []string{"l", "o", EndOfWord},
			expected: []string{"l", "o", EndOfWord},
		},
	}

	for i, tc := range tcs {
		actual := tc.rule.apply(append([]string(nil), tc.symbols...))
		assert.Equal(t, tc.expected, actual, "\ncase %d: %s", i, tc.desc)
	}
}

func TestCountPairs(t *testing.T) {
	words := []*word{
		{symbols: []string{"l", "o", "w", EndOfWord}, freq: 5},
		{symbols: []string{"l", "o", "w", "e", "r", EndOfWord}, freq: 2},
		{symbols: []string{"a", "a", "a", EndOfWord}, freq: 1},
		{symbols: []string{"lower" + EndOfWord}, freq: 9},
	}

	counts := countPairs(words)
	assert.Equal(t, 7, counts[MergeRule{"l", "o"}])
	assert.Equal(t, 7, counts[MergeRule{"o", "w"}])
	assert.Equal(t, 5, counts[MergeRule{"w", EndOfWord}])
	assert.Equal(t, 2, counts[MergeRule{"w", "e"}])
	assert.Equal(t, 2, counts[MergeRule{"a", "a"}])
	assert.Len(t, counts, 8)
}

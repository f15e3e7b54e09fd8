package queue

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsEmpty(t *testing.T) {
	_, err := New(nil, false, nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = New([]string{}, true, nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestNewCopiesInput(t *testing.T) {
	input := []string{"a", "b"}
	q, err := New(input, false, nil)
	require.NoError(t, err)

	input[0] = "mutated"
	assert.Equal(t, "a", q.Next())
}

func TestSequenceCycles(t *testing.T) {
	list := []string{"a", "b", "c"}
	q, err := New(list, false, nil)
	require.NoError(t, err)
	require.IsType(t, &Sequence{}, q)

	for n := 0; n < 10; n++ {
		assert.Equal(t, list[n%len(list)], q.Next(), "draw %d", n)
	}
}

func TestSequenceSingleMessage(t *testing.T) {
	q := NewSequence([]string{"only"})
	for i := 0; i < 3; i++ {
		assert.Equal(t, "only", q.Next())
	}
}

func TestShuffleEachPassIsPermutation(t *testing.T) {
	list := []string{"a", "b", "c", "d", "e"}
	q, err := New(list, true, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	require.IsType(t, &Shuffle{}, q)

	for pass := 0; pass < 20; pass++ {
		seen := make(map[string]int)
		for i := 0; i < len(list); i++ {
			seen[q.Next()]++
		}
		assert.Len(t, seen, len(list), "pass %d must contain every message", pass)
		for msg, count := range seen {
			assert.Equal(t, 1, count, "message %q repeated inside pass %d", msg, pass)
		}
	}
}

func TestShuffleNoStarvation(t *testing.T) {
	list := []string{"a", "b", "c", "d"}
	q := NewShuffle(list, rand.New(rand.NewSource(7)))

	counts := make(map[string]int)
	k := 5
	for i := 0; i < k*len(list); i++ {
		counts[q.Next()]++
	}
	for _, msg := range list {
		assert.GreaterOrEqual(t, counts[msg], 1)
		assert.Equal(t, k, counts[msg], "whole passes give equal counts")
	}
}

func TestShuffleDuplicateEntriesKept(t *testing.T) {
	q := NewShuffle([]string{"x", "x", "y"}, rand.New(rand.NewSource(1)))
	counts := map[string]int{}
	for i := 0; i < 3; i++ {
		counts[q.Next()]++
	}
	assert.Equal(t, map[string]int{"x": 2, "y": 1}, counts)
}

func TestParseMessages(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want []string
	}{
		{name: "plain", in: "来了\n喜欢主播", want: []string{"来了", "喜欢主播"}},
		{name: "trims and drops blanks", in: "  hi  \n\n   \nthere\t", want: []string{"hi", "there"}},
		{name: "windows line endings", in: "a\r\nb\r\n", want: []string{"a", "b"}},
		{name: "empty", in: "", want: nil},
		{name: "whitespace only", in: " \n \n", want: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseMessages(tc.in))
		})
	}
}

func TestLooksUnsplit(t *testing.T) {
	long := strings.Repeat("很", 51)
	assert.True(t, LooksUnsplit([]string{long}, 50))
	assert.False(t, LooksUnsplit([]string{strings.Repeat("很", 50)}, 50))
	assert.False(t, LooksUnsplit([]string{long, "b"}, 50))
	assert.False(t, LooksUnsplit([]string{long}, 0), "zero limit disables the guard")
}

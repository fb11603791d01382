package poem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lineOf(goal int, rhyme string, tokens ...string) *Line {
	l := NewLine(goal, rhyme, WithLineEncoder(Metaphone{}))
	for _, tok := range tokens {
		l = l.Add(tok)
	}
	return l
}

func TestLineAddDoesNotMutate(t *testing.T) {
	base := lineOf(5, "", "one")
	a := base.Add("two")
	b := base.Add("red")

	assert.Equal(t, []string{"one"}, base.Tokens())
	assert.Equal(t, []string{"one", "two"}, a.Tokens())
	assert.Equal(t, []string{"one", "red"}, b.Tokens())

	tokens := a.Tokens()
	tokens[0] = "changed"
	assert.Equal(t, "one two", a.String())
}

func TestLineSyllables(t *testing.T) {
	l := lineOf(5, "", "a", "b", "c")
	assert.Equal(t, 3, l.Syllables())
	assert.Equal(t, 2, l.SyllableDistance())
	assert.Equal(t, 2, l.Score())
	assert.True(t, l.Valid())
	assert.False(t, l.Over())

	long := lineOf(2, "", "a", "b", "c", "d", "e")
	assert.Equal(t, 3, long.SyllableDistance())
	assert.False(t, long.Valid())
	assert.True(t, long.Over())
}

func TestLineRhymeDistance(t *testing.T) {
	tests := []struct {
		name  string
		rhyme string
		last  string
		want  int
	}{
		{name: "no goal", rhyme: "", last: "fish", want: 0},
		{name: "same sound", rhyme: "night", last: "knight", want: 0},
		{name: "last sound", rhyme: "night", last: "light", want: 1},
		{name: "first of two", rhyme: "night", last: "cat", want: 1},
		{name: "nothing", rhyme: "night", last: "fish", want: 2},
		{name: "both empty", rhyme: "123", last: "!!", want: 0},
		{name: "one empty", rhyme: "123", last: "cat", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := lineOf(1, tt.rhyme, tt.last)
			assert.Equal(t, tt.want, l.RhymeDistance())
		})
	}
}

func TestLineEmpty(t *testing.T) {
	l := lineOf(5, "night")
	assert.Equal(t, 0, l.Score())
	assert.Equal(t, 0, l.RhymeDistance())
	assert.Empty(t, l.Last())
	assert.Empty(t, l.String())
}

func TestLineValidity(t *testing.T) {
	strict := NewLine(2, "night", WithLineTolerance(0)).Add("a").Add("light")
	assert.True(t, strict.Valid())

	strict = NewLine(2, "night", WithLineTolerance(0)).Add("a").Add("fish")
	assert.False(t, strict.Valid(), "rhyme distance 2 is out of tolerance")
	assert.False(t, strict.Over())

	strict = NewLine(2, "", WithLineTolerance(0)).Add("a")
	assert.False(t, strict.Valid())
}

func TestLineBetterThan(t *testing.T) {
	good := lineOf(2, "", "a", "b")
	worse := lineOf(2, "", "a")

	assert.True(t, good.BetterThan(nil))
	assert.True(t, good.BetterThan(worse))
	assert.False(t, worse.BetterThan(good))
	assert.False(t, good.BetterThan(lineOf(2, "", "c", "d")), "equal scores are not better")
}

func TestLineDefaultEncoder(t *testing.T) {
	// Double Metaphone folds B into P, so "tub" rhymes fully with "top".
	l := NewLine(1, "top").Add("tub")
	assert.Equal(t, 0, l.RhymeDistance())

	l = NewLine(1, "top", WithLineEncoder(Metaphone{})).Add("tub")
	assert.Equal(t, 1, l.RhymeDistance())
}

func TestLineGoals(t *testing.T) {
	l := NewLine(7, "night").Add("a")
	assert.Equal(t, 7, l.Goal())
	assert.Equal(t, "night", l.RhymeGoal())
}

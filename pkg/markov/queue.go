package markov

import "math/rand/v2"

// ChoiceQueue yields every successor of a root token exactly once, in an
// order drawn by weighted sampling without replacement: frequent successors
// tend to come out first, but every one of them comes out eventually.
//
// The queue works on its own copy of the successor table, so consuming it
// never touches the Model. A ChoiceQueue cannot be restarted and is not safe
// for concurrent use.
type ChoiceQueue struct {
	next  []string
	freq  []int
	total int
}

// NewChoiceQueue snapshots the successors of root. The queue is empty when
// root is unknown or has no successors.
func NewChoiceQueue(m *Model, root string) *ChoiceQueue {
	next, freq := m.snapshot(root)
	return newChoiceQueue(next, freq)
}

// NewUniformQueue builds a queue over tokens where every token has the same
// weight, producing a uniformly random permutation.
func NewUniformQueue(tokens []string) *ChoiceQueue {
	next := make([]string, len(tokens))
	copy(next, tokens)
	freq := make([]int, len(tokens))
	for i := range freq {
		freq[i] = 1
	}
	return newChoiceQueue(next, freq)
}

func newChoiceQueue(next []string, freq []int) *ChoiceQueue {
	q := &ChoiceQueue{next: next, freq: freq}
	for _, f := range freq {
		q.total += f
	}
	return q
}

// Len returns the number of tokens not yet yielded.
func (q *ChoiceQueue) Len() int {
	return len(q.next)
}

// Next removes and returns one token. It returns false once the queue is exhausted.
func (q *ChoiceQueue) Next(rng *rand.Rand) (string, bool) {
	if len(q.next) == 0 || q.total <= 0 {
		return "", false
	}

	draw := rng.IntN(q.total)
	i := 0
	for ; i < len(q.freq)-1; i++ {
		draw -= q.freq[i]
		if draw < 0 {
			break
		}
	}

	token := q.next[i]
	q.total -= q.freq[i]

	// Remove i while keeping the remaining order stable.
	q.next = append(q.next[:i], q.next[i+1:]...)
	q.freq = append(q.freq[:i], q.freq[i+1:]...)
	return token, true
}

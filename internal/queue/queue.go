// Package queue yields the messages of a run one at a time, either in list
// order or as repeated shuffled passes.
package queue

import (
	"errors"
	"math/rand"
	"strings"
	"unicode/utf8"
)

// ErrEmpty is returned when a queue is built from an empty message list.
var ErrEmpty = errors.New("queue: message list is empty")

// Queue hands out the next message to send. Implementations are not safe for
// concurrent use; the scheduler loop is the only caller.
type Queue interface {
	Next() string
	Len() int
}

// New builds the queue for a run. randomize selects shuffled passes.
func New(messages []string, randomize bool, rng *rand.Rand) (Queue, error) {
	if len(messages) == 0 {
		return nil, ErrEmpty
	}
	list := append([]string(nil), messages...)
	if randomize {
		return NewShuffle(list, rng), nil
	}
	return NewSequence(list), nil
}

// Sequence cycles through the list in order: the n-th draw is list[n mod len].
type Sequence struct {
	list   []string
	cursor int
}

// NewSequence panics on an empty list; use New for validated construction.
func NewSequence(list []string) *Sequence {
	if len(list) == 0 {
		panic("queue: NewSequence with empty list")
	}
	return &Sequence{list: list}
}

func (s *Sequence) Next() string {
	msg := s.list[s.cursor]
	s.cursor = (s.cursor + 1) % len(s.list)
	return msg
}

func (s *Sequence) Len() int { return len(s.list) }

// Shuffle hands out a fresh random permutation of the list per pass.
// No message repeats inside a pass. The last message of one pass may equal
// the first of the next.
type Shuffle struct {
	list   []string
	order  []string
	cursor int
	rng    *rand.Rand
}

// NewShuffle panics on an empty list; use New for validated construction.
func NewShuffle(list []string, rng *rand.Rand) *Shuffle {
	if len(list) == 0 {
		panic("queue: NewShuffle with empty list")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	s := &Shuffle{list: list, rng: rng, order: make([]string, len(list))}
	s.reshuffle()
	return s
}

func (s *Shuffle) reshuffle() {
	copy(s.order, s.list)
	s.rng.Shuffle(len(s.order), func(i, j int) {
		s.order[i], s.order[j] = s.order[j], s.order[i]
	})
	s.cursor = 0
}

func (s *Shuffle) Next() string {
	if s.cursor >= len(s.order) {
		s.reshuffle()
	}
	msg := s.order[s.cursor]
	s.cursor++
	return msg
}

func (s *Shuffle) Len() int { return len(s.list) }

// ParseMessages splits newline-delimited text into messages, trimming each
// line and dropping blank ones.
func ParseMessages(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// LooksUnsplit reports a list of exactly one message longer than limit runes,
// which usually means the operator forgot the line breaks.
func LooksUnsplit(messages []string, limit int) bool {
	return limit > 0 && len(messages) == 1 && utf8.RuneCountInString(messages[0]) > limit
}

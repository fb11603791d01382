package poem

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
	lru "github.com/hashicorp/golang-lru"
)

// Encoder names accepted by EncoderByName.
const (
	EncoderDoubleMetaphone = "double-metaphone"
	EncoderMetaphone       = "metaphone"
)

// Encoder turns a word into a phonetic key. Rhyme distance compares the last
// characters of two keys, so any encoder whose keys end in the word's final
// sounds can be plugged in.
type Encoder interface {
	Encode(word string) string
}

// EncoderFunc adapts a plain function to the Encoder interface.
type EncoderFunc func(word string) string

// Encode calls f(word).
func (f EncoderFunc) Encode(word string) string {
	return f(word)
}

// CachedEncoder memoises another Encoder. Line search encodes the same few
// words over and over, so a small cache removes most of the work.
// It is safe for concurrent use.
type CachedEncoder struct {
	inner Encoder
	cache *lru.Cache
}

// NewCachedEncoder wraps inner with an LRU cache holding up to size codes.
func NewCachedEncoder(inner Encoder, size int) (*CachedEncoder, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedEncoder{inner: inner, cache: cache}, nil
}

// Encode returns the cached code for word, computing it on a miss.
func (c *CachedEncoder) Encode(word string) string {
	if v, ok := c.cache.Get(word); ok {
		return v.(string)
	}
	code := c.inner.Encode(word)
	c.cache.Add(word, code)
	return code
}

// DoubleMetaphone encodes a word with the primary Double Metaphone key
// ("knight" -> "NT", "phone" -> "FN"). Characters other than ASCII letters
// are ignored, so punctuated tokens such as "night," encode like the bare
// word. It is the default encoder of NewLine and NewAssembler.
var DoubleMetaphone = EncoderFunc(func(word string) string {
	w := asciiUpper(word)
	if w == "" {
		return ""
	}
	primary, _ := matchr.DoubleMetaphone(w)
	return primary
})

// EncoderByName returns the encoder registered under name. An empty name
// selects DoubleMetaphone.
func EncoderByName(name string) (Encoder, error) {
	switch strings.ToLower(name) {
	case "", EncoderDoubleMetaphone:
		return DoubleMetaphone, nil
	case EncoderMetaphone:
		return Metaphone{}, nil
	default:
		return nil, fmt.Errorf("unknown phonetic encoder %q (have %s, %s)", name, EncoderDoubleMetaphone, EncoderMetaphone)
	}
}

// asciiUpper keeps the ASCII letters of word, upper-cased.
func asciiUpper(word string) string {
	w := make([]byte, 0, len(word))
	for i := 0; i < len(word); i++ {
		c := word[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c >= 'A' && c <= 'Z' {
			w = append(w, c)
		}
	}
	return string(w)
}

// Metaphone is an Encoder implementing the original Metaphone rules, which
// reduce an English word to a short consonant skeleton ("night" -> "NT",
// "phone" -> "FN"). Vowels are dropped unless they start the word, and
// characters other than ASCII letters are ignored. The digit '0' stands for
// the "th" sound.
type Metaphone struct{}

func isVowel(c byte) bool {
	return c == 'A' || c == 'E' || c == 'I' || c == 'O' || c == 'U'
}

func oneOf(c byte, set string) bool {
	return c != 0 && strings.IndexByte(set, c) >= 0
}

// Encode returns the Metaphone key of word.
func (Metaphone) Encode(word string) string {
	s := asciiUpper(word)
	if s == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(s, "AE"), strings.HasPrefix(s, "GN"), strings.HasPrefix(s, "KN"),
		strings.HasPrefix(s, "PN"), strings.HasPrefix(s, "WR"):
		s = s[1:]
	case strings.HasPrefix(s, "WH"):
		s = "W" + s[2:]
	case s[0] == 'X':
		s = "S" + s[1:]
	}

	n := len(s)
	at := func(i int) byte {
		if i < 0 || i >= n {
			return 0
		}
		return s[i]
	}

	var b strings.Builder
	for i := 0; i < n; i++ {
		c := s[i]
		if c == at(i-1) && c != 'C' {
			continue
		}
		next, prev := at(i+1), at(i-1)

		switch c {
		case 'A', 'E', 'I', 'O', 'U':
			if i == 0 {
				b.WriteByte(c)
			}
		case 'B':
			if !(i == n-1 && prev == 'M') {
				b.WriteByte('B')
			}
		case 'C':
			switch {
			case next == 'I' && at(i+2) == 'A':
				b.WriteByte('X')
			case next == 'H':
				if prev == 'S' {
					b.WriteByte('K')
				} else {
					b.WriteByte('X')
				}
			case oneOf(next, "IEY"):
				if prev != 'S' {
					b.WriteByte('S')
				}
			default:
				b.WriteByte('K')
			}
		case 'D':
			if next == 'G' && oneOf(at(i+2), "EIY") {
				b.WriteByte('J')
				i++
			} else {
				b.WriteByte('T')
			}
		case 'G':
			switch {
			case next == 'H' && i+2 < n && !isVowel(at(i+2)):
				// silent, as in "night"
			case next == 'N' && (i+2 == n || (at(i+2) == 'E' && at(i+3) == 'D' && i+4 == n)):
				// silent, as in "sign" and "signed"
			case oneOf(next, "IEY") && prev != 'G':
				b.WriteByte('J')
			default:
				b.WriteByte('K')
			}
		case 'H':
			if isVowel(next) && !oneOf(prev, "CSPTG") {
				b.WriteByte('H')
			}
		case 'K':
			if prev != 'C' {
				b.WriteByte('K')
			}
		case 'P':
			if next == 'H' {
				b.WriteByte('F')
			} else {
				b.WriteByte('P')
			}
		case 'Q':
			b.WriteByte('K')
		case 'S':
			switch {
			case next == 'H':
				b.WriteByte('X')
			case next == 'I' && oneOf(at(i+2), "OA"):
				b.WriteByte('X')
			default:
				b.WriteByte('S')
			}
		case 'T':
			switch {
			case next == 'I' && oneOf(at(i+2), "OA"):
				b.WriteByte('X')
			case next == 'H':
				b.WriteByte('0')
			case next == 'C' && at(i+2) == 'H':
				// silent, as in "watch"
			default:
				b.WriteByte('T')
			}
		case 'V':
			b.WriteByte('F')
		case 'W', 'Y':
			if isVowel(next) {
				b.WriteByte(c)
			}
		case 'X':
			b.WriteString("KS")
		case 'Z':
			b.WriteByte('S')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

package dataset

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer folds case, strips diacritics and splits text into word and
// punctuation tokens. Tokens are hashed into a fixed number of buckets.
type Tokenizer struct {
	MaxLen  int
	HashDim int
}

func (t Tokenizer) normalize(text string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(chain, text)
	if err != nil {
		out = text
	}

	return cases.Lower(language.Und).String(out)
}

// Tokens returns at most MaxLen tokens of text.
func (t Tokenizer) Tokens(text string) []string {
	var (
		tokens []string
		word   strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}
	for _, r := range t.normalize(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			flush()
		}
	}
	flush()

	if t.MaxLen > 0 && len(tokens) > t.MaxLen {
		tokens = tokens[:t.MaxLen]
	}

	return tokens
}

// Encode maps text to an L2-normalised bag of hashed tokens of length
// HashDim.
func (t Tokenizer) Encode(text string) []float32 {
	vec := make([]float32, t.HashDim)
	if t.HashDim <= 0 {
		return vec
	}
	for _, tok := range t.Tokens(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32()%uint32(t.HashDim))]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	n := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= n
	}

	return vec
}

package bleu

import (
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"
)

const maxOrder = 4

// Corpus computes corpus-level BLEU over aligned reference and hypothesis
// segments. The result is in [0, 1]; callers scale to a percentage. When
// caseSensitive is false both sides are lowercased before tokenization.
//
// Standard clipped n-gram precision up to 4-grams with a brevity penalty.
// Orders for which the hypothesis corpus is too short to produce any n-gram
// are left out of the geometric mean; an order with zero matches yields 0.
func Corpus(references, hypotheses []string, caseSensitive bool) (float64, error) {
	if len(references) != len(hypotheses) {
		return 0, fmt.Errorf("reference has %d segments, hypothesis has %d", len(references), len(hypotheses))
	}

	matches := make([]int64, maxOrder)
	possible := make([]int64, maxOrder)
	var refLen, hypLen int64

	for i := range references {
		ref := references[i]
		hyp := hypotheses[i]
		if !caseSensitive {
			ref = strings.ToLower(ref)
			hyp = strings.ToLower(hyp)
		}
		refTokens := Tokenize(ref)
		hypTokens := Tokenize(hyp)
		refLen += int64(len(refTokens))
		hypLen += int64(len(hypTokens))

		refGrams := ngrams(refTokens)
		hypGrams := ngrams(hypTokens)
		for gram, count := range hypGrams {
			if rc := refGrams[gram]; rc > 0 {
				if count > rc {
					count = rc
				}
				matches[gramOrder(gram)-1] += int64(count)
			}
		}
		for n := 1; n <= maxOrder; n++ {
			if p := len(hypTokens) - n + 1; p > 0 {
				possible[n-1] += int64(p)
			}
		}
	}

	var logSum float64
	orders := 0
	for n := 0; n < maxOrder; n++ {
		if possible[n] == 0 {
			continue
		}
		if matches[n] == 0 {
			return 0, nil
		}
		logSum += math.Log(float64(matches[n]) / float64(possible[n]))
		orders++
	}
	if orders == 0 {
		return 0, nil
	}
	geoMean := math.Exp(logSum / float64(orders))

	bp := 1.0
	if refLen > 0 {
		if hypLen == 0 {
			bp = 0
		} else if hypLen < refLen {
			bp = math.Exp(1 - float64(refLen)/float64(hypLen))
		}
	}
	return geoMean * bp, nil
}

// Files scores a hypothesis file against a reference file. Both must hold
// the same number of newline-separated segments.
func Files(referencePath, hypothesisPath string, caseSensitive bool) (float64, error) {
	refs, err := readSegments(referencePath)
	if err != nil {
		return 0, err
	}
	hyps, err := readSegments(hypothesisPath)
	if err != nil {
		return 0, err
	}
	score, err := Corpus(refs, hyps, caseSensitive)
	if err != nil {
		return 0, fmt.Errorf("%s vs %s: %w", referencePath, hypothesisPath, err)
	}
	return score, nil
}

func readSegments(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// Tokenize splits text for BLEU scoring: punctuation is split from adjoining
// words unless it sits between digits (so "1.5" stays whole), and symbol
// characters always stand alone.
func Tokenize(text string) []string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text) + len(text)/4)
	for i, r := range runes {
		switch {
		case unicode.IsSymbol(r):
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		case unicode.IsPunct(r):
			prevNonDigit := i > 0 && !unicode.IsDigit(runes[i-1])
			nextNonDigit := i+1 < len(runes) && !unicode.IsDigit(runes[i+1])
			if prevNonDigit || nextNonDigit {
				b.WriteRune(' ')
				b.WriteRune(r)
				b.WriteRune(' ')
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return strings.Fields(b.String())
}

type gram struct {
	text string
	n    int
}

func gramOrder(g gram) int {
	return g.n
}

func ngrams(tokens []string) map[gram]int {
	counts := make(map[gram]int)
	for n := 1; n <= maxOrder; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			counts[gram{text: strings.Join(tokens[i:i+n], "\x00"), n: n}]++
		}
	}
	return counts
}

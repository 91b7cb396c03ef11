// Package sentiment scores text as bullish, bearish, or neutral using
// heuristic lexical rules. No learned models; the observable contract is
// that identical input always yields identical output.
package sentiment

import "strings"

// Sentiment is the classification outcome.
type Sentiment string

const (
	Bullish Sentiment = "bullish"
	Bearish Sentiment = "bearish"
	Neutral Sentiment = "neutral"
)

// Explanation reports which lexicon terms drove a classification.
type Explanation struct {
	Sentiment    Sentiment
	BullishTerms []string
	BearishTerms []string
}

// Classifier counts curated bullish/bearish terms in text. It is pure and
// stateless: safe for concurrent use, no I/O.
type Classifier struct {
	lex *Lexicon
}

// NewClassifier builds a classifier over the given lexicon. A nil lexicon
// uses the compiled-in defaults.
func NewClassifier(lex *Lexicon) *Classifier {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &Classifier{lex: lex}
}

// Classify scores text. Bullish if bullish term occurrences strictly exceed
// bearish ones, bearish if the reverse. Ties and zero signal resolve to
// Neutral; that is a deliberate default, not an error.
func (c *Classifier) Classify(text string) Sentiment {
	bull, _ := c.count(text, c.lex.Bullish)
	bear, _ := c.count(text, c.lex.Bearish)
	return verdict(bull, bear)
}

// Explain classifies text and reports the matched terms from each table,
// in lexicon order.
func (c *Classifier) Explain(text string) Explanation {
	bull, bullTerms := c.count(text, c.lex.Bullish)
	bear, bearTerms := c.count(text, c.lex.Bearish)
	return Explanation{
		Sentiment:    verdict(bull, bear),
		BullishTerms: bullTerms,
		BearishTerms: bearTerms,
	}
}

// ClassifyNarrative composes a narrative's title and summary with the title
// weighted at least as heavily: both texts are scored together, and when
// the combined counts tie, the title-only verdict wins.
func (c *Classifier) ClassifyNarrative(title, summary string) Sentiment {
	titleBull, _ := c.count(title, c.lex.Bullish)
	titleBear, _ := c.count(title, c.lex.Bearish)
	sumBull, _ := c.count(summary, c.lex.Bullish)
	sumBear, _ := c.count(summary, c.lex.Bearish)

	bull := titleBull + sumBull
	bear := titleBear + sumBear
	if bull == bear {
		return verdict(titleBull, titleBear)
	}
	return verdict(bull, bear)
}

func verdict(bull, bear int) Sentiment {
	switch {
	case bull > bear:
		return Bullish
	case bear > bull:
		return Bearish
	default:
		return Neutral
	}
}

// count sums word-boundary occurrences of every term and returns the terms
// that matched at least once.
func (c *Classifier) count(text string, terms []string) (int, []string) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}
	lower := strings.ToLower(text)

	total := 0
	var matched []string
	for _, term := range terms {
		n := countWord(lower, strings.ToLower(term))
		if n > 0 {
			total += n
			matched = append(matched, term)
		}
	}
	return total, matched
}

// countWord counts whole-word occurrences of word in text.
func countWord(text, word string) int {
	if word == "" {
		return 0
	}
	count := 0
	offset := 0
	for {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			return count
		}
		abs := offset + idx

		leftOK := abs == 0 || !isAlphaNum(text[abs-1])
		end := abs + len(word)
		rightOK := end >= len(text) || !isAlphaNum(text[end])

		if leftOK && rightOK {
			count++
		}
		offset = end
		if offset >= len(text) {
			return count
		}
	}
}

func isAlphaNum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

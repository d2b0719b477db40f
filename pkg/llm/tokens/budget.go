// Package tokens keeps interpreter prompts inside a token budget.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tokenizer used by the gpt-4 family.
const DefaultEncoding = "cl100k_base"

// charsPerToken approximates token counts when no tokenizer is available.
const charsPerToken = 4

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// defaultEncoder loads the tokenizer once. Loading may need network access
// to fetch the BPE ranks; on failure nil is returned and callers estimate.
func defaultEncoder() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(DefaultEncoding)
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// Budget counts and truncates text against a maximum token count.
type Budget struct {
	enc *tiktoken.Tiktoken
	max int
}

// NewBudget returns a budget of max tokens using the default tokenizer, or a
// character-based estimate when the tokenizer cannot be loaded. A max of zero
// or less disables truncation.
func NewBudget(max int) *Budget {
	return &Budget{enc: defaultEncoder(), max: max}
}

// NewEstimatingBudget returns a budget that always estimates from character
// counts.
func NewEstimatingBudget(max int) *Budget {
	return &Budget{max: max}
}

// Max returns the budget size.
func (b *Budget) Max() int {
	return b.max
}

// Exact reports whether counts come from a real tokenizer.
func (b *Budget) Exact() bool {
	return b.enc != nil
}

// Count returns the number of tokens in text.
func (b *Budget) Count(text string) int {
	if b.enc != nil {
		return len(b.enc.Encode(text, nil, nil))
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}

// Truncate cuts text down to at most n tokens. The second result reports
// whether anything was removed.
func (b *Budget) Truncate(text string, n int) (string, bool) {
	if n < 0 {
		n = 0
	}

	if b.enc != nil {
		ids := b.enc.Encode(text, nil, nil)
		if len(ids) <= n {
			return text, false
		}
		return b.enc.Decode(ids[:n]), true
	}

	limit := n * charsPerToken
	if len(text) <= limit {
		return text, false
	}
	// Back up to a rune boundary.
	for limit > 0 && limit < len(text) && !runeStart(text[limit]) {
		limit--
	}
	return text[:limit], true
}

// Fit truncates text so that it, plus reserved tokens of surrounding prompt,
// stays within the budget.
func (b *Budget) Fit(text string, reserved int) (string, bool) {
	if b.max <= 0 {
		return text, false
	}
	return b.Truncate(text, b.max-reserved)
}

func runeStart(c byte) bool {
	return c&0xC0 != 0x80
}

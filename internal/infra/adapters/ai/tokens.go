package ai

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter estimates prompt sizes for budgeting and metrics.
type tokenCounter interface {
	Count(text string) int
	Truncate(text string, max int) string
}

// tiktokenCounter loads the encoding for a model lazily and falls back to a
// character heuristic when the encoding cannot be loaded.
type tiktokenCounter struct {
	model string
	once  sync.Once
	enc   *tiktoken.Tiktoken
}

func newTokenCounter(model string) *tiktokenCounter {
	return &tiktokenCounter{model: model}
}

func (c *tiktokenCounter) encoding() *tiktoken.Tiktoken {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding("cl100k_base")
		}
		if err == nil {
			c.enc = enc
		}
	})
	return c.enc
}

func (c *tiktokenCounter) Count(text string) int {
	if enc := c.encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return heuristicCounter{}.Count(text)
}

func (c *tiktokenCounter) Truncate(text string, max int) string {
	enc := c.encoding()
	if enc == nil {
		return heuristicCounter{}.Truncate(text, max)
	}
	toks := enc.Encode(text, nil, nil)
	if len(toks) <= max {
		return text
	}
	return enc.Decode(toks[:max])
}

// heuristicCounter assumes roughly four characters per token.
type heuristicCounter struct{}

func (heuristicCounter) Count(text string) int {
	return (utf8.RuneCountInString(text) + 3) / 4
}

func (heuristicCounter) Truncate(text string, max int) string {
	r := []rune(text)
	if len(r) <= max*4 {
		return text
	}
	return string(r[:max*4])
}

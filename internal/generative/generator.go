// Package generative connects the generative-delegate strategy to an
// abstractive summarization model. Several backends implement Generator;
// the strategy only sees the interface.
package generative

import (
	"context"
	"strconv"
	"sync"
)

// Params are the fixed decoding parameters of the summarizer.
type Params struct {
	Prefix         string  `json:"prefix"`
	MaxInputTokens int     `json:"max_input_tokens"`
	MaxLength      int     `json:"max_length"`
	MinLength      int     `json:"min_length"`
	LengthPenalty  float64 `json:"length_penalty"`
	NumBeams       int     `json:"num_beams"`
	EarlyStopping  bool    `json:"early_stopping"`
	DoSample       bool    `json:"do_sample"`
	Temperature    float64 `json:"temperature"`
	TopK           int     `json:"top_k"`
	TopP           float64 `json:"top_p"`
}

// DefaultParams returns the decoding parameters used for every summary.
func DefaultParams() Params {
	return Params{
		Prefix:         "summarize: ",
		MaxInputTokens: 512,
		MaxLength:      300,
		MinLength:      80,
		LengthPenalty:  1.5,
		NumBeams:       4,
		EarlyStopping:  true,
		DoSample:       true,
		Temperature:    0.8,
		TopK:           50,
		TopP:           0.9,
	}
}

// Generator maps long text to a shorter summary. Implementations truncate
// input to their own token budget.
type Generator interface {
	Generate(ctx context.Context, text string, params Params) (string, error)
}

// Lazy defers constructing a Generator until the first call and then
// reuses the handle. A construction error is remembered and returned on
// every call.
type Lazy struct {
	build func() (Generator, error)
	once  sync.Once
	gen   Generator
	err   error
}

// NewLazy wraps a constructor.
func NewLazy(build func() (Generator, error)) *Lazy {
	return &Lazy{build: build}
}

func (l *Lazy) load() (Generator, error) {
	l.once.Do(func() {
		l.gen, l.err = l.build()
	})
	return l.gen, l.err
}

func (l *Lazy) Generate(ctx context.Context, text string, params Params) (string, error) {
	gen, err := l.load()
	if err != nil {
		return "", err
	}
	return gen.Generate(ctx, text, params)
}

// instruction turns decoding parameters into a prompt for chat-style
// models, which take no beam or length-penalty controls.
func instruction(text string, p Params) string {
	return "Summarize the following clinical note in plain prose of roughly " +
		strconv.Itoa(p.MinLength) + " to " + strconv.Itoa(p.MaxLength) +
		" tokens. Do not add information that is not in the note.\n\n" + text
}

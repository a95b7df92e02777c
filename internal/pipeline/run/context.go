// Package run drives the four pipeline stages — chunk, dispatch Q/A
// synthesis, analyze coverage, persist — behind one RunContext, grounded
// on internal/rag/service.Service's constructor-injected
// logger/metrics/clock/embedder Option pattern, generalized from a single
// RAG service object to this pipeline's chunker/merger/allocator/
// dispatcher/coverage/persist collaborators.
package run

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nakashima2toshio/qagen/internal/pipeline/dispatcher"
	"github.com/nakashima2toshio/qagen/internal/pipeline/embedprovider"
	"github.com/nakashima2toshio/qagen/internal/pipeline/llmprovider"
	"github.com/nakashima2toshio/qagen/internal/pipeline/tokenizer"
)

// Clock abstracts time so tests can control run timestamps and durations.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Context carries every collaborator a run needs, injected via Option so no
// pipeline component reaches for a package-level global.
type Context struct {
	Logger     zerolog.Logger
	Metrics    Metrics
	Clock      Clock
	LLM        llmprovider.Provider
	Embedder   embedprovider.Provider
	Dispatcher dispatcher.Dispatcher
	Tokenizer  tokenizer.Tokenizer
}

// New constructs a Context with no-op defaults for every optional
// collaborator; the caller must still supply LLM, Embedder, and Dispatcher
// since a run cannot proceed without them.
func New(llm llmprovider.Provider, embedder embedprovider.Provider, disp dispatcher.Dispatcher, opts ...Option) *Context {
	c := &Context{
		Logger:     zerolog.Nop(),
		Metrics:    NoopMetrics{},
		Clock:      SystemClock{},
		LLM:        llm,
		Embedder:   embedder,
		Dispatcher: disp,
		Tokenizer:  tokenizer.Whitespace{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Option func(*Context)

func WithLogger(l zerolog.Logger) Option       { return func(c *Context) { c.Logger = l } }
func WithMetrics(m Metrics) Option             { return func(c *Context) { c.Metrics = m } }
func WithClock(clk Clock) Option               { return func(c *Context) { c.Clock = clk } }
func WithTokenizer(t tokenizer.Tokenizer) Option { return func(c *Context) { c.Tokenizer = t } }

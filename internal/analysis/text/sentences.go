// Package text holds the tokenization shared by the summary, sentiment and search stages.
package text

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"meetscribe/internal/fallback"
)

// Splitter is one sentence tokenization strategy.
type Splitter interface {
	fallback.Strategy
	Split(text string) ([]string, error)
}

// PunktSplitter uses the pre-trained English Punkt model.
type PunktSplitter struct {
	once sync.Once
	tok  *sentences.DefaultSentenceTokenizer
	err  error
}

// NewPunktSplitter returns a splitter whose model is loaded on first use.
func NewPunktSplitter() *PunktSplitter {
	return &PunktSplitter{}
}

func (p *PunktSplitter) load() {
	p.once.Do(func() {
		p.tok, p.err = english.NewSentenceTokenizer(nil)
	})
}

func (p *PunktSplitter) Name() string { return "punkt" }

func (p *PunktSplitter) Available() error {
	p.load()
	if p.err != nil {
		return fmt.Errorf("%w: punkt model: %v", fallback.ErrUnavailable, p.err)
	}
	return nil
}

func (p *PunktSplitter) Split(text string) (out []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("punkt tokenizer panicked: %v", r)
		}
	}()

	for _, s := range p.tok.Tokenize(text) {
		if t := strings.TrimSpace(s.Text); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("punkt produced no sentences")
	}
	return out, nil
}

var sentenceEnd = regexp.MustCompile(`[^.!?]+(?:[.!?]+|$)`)

// RegexSplitter splits on runs of '.', '!' and '?'.
type RegexSplitter struct{}

func (RegexSplitter) Name() string     { return "regex" }
func (RegexSplitter) Available() error { return nil }

func (RegexSplitter) Split(text string) ([]string, error) {
	var out []string
	for _, m := range sentenceEnd.FindAllString(text, -1) {
		if t := strings.TrimSpace(m); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// Tokenizer splits text into sentences through an ordered list of splitters,
// falling through on any failure.
type Tokenizer struct {
	splitters []Splitter
}

// NewTokenizer creates a Tokenizer. With no splitters it uses Punkt then the regex splitter.
func NewTokenizer(splitters ...Splitter) *Tokenizer {
	if len(splitters) == 0 {
		splitters = []Splitter{NewPunktSplitter(), RegexSplitter{}}
	}
	return &Tokenizer{splitters: splitters}
}

// Sentences returns the trimmed, non-empty sentences of text.
func (t *Tokenizer) Sentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	out, err := fallback.Run(context.Background(), t.splitters, fallback.OnError, func(_ context.Context, s Splitter) ([]string, error) {
		return s.Split(text)
	})
	if err != nil {
		out, _ = RegexSplitter{}.Split(text)
	}
	return out
}

var defaultTokenizer = sync.OnceValue(func() *Tokenizer { return NewTokenizer() })

// Sentences splits text with the default tokenizer.
func Sentences(text string) []string {
	return defaultTokenizer().Sentences(text)
}

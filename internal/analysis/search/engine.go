// Package search ranks transcript sentences against free-text queries using TF-IDF.
package search

import (
	"errors"
	"math"
	"sort"
	"strings"
	"sync"

	"meetscribe/internal/analysis/text"
)

// Messages returned instead of results.
const (
	MsgNotIndexed   = "No transcript has been indexed yet."
	MsgInvalidQuery = "Invalid search query."
	MsgNoMatches    = "No matching results found."
)

// Query limits.
const (
	DefaultLimit = 5
	MaxLimit     = 50
)

var (
	// ErrEmptyTranscript is returned when there is nothing to index.
	ErrEmptyTranscript = errors.New("transcript has no sentences")
	// ErrNotIndexed is returned when no index exists for the requested job.
	ErrNotIndexed = errors.New("transcript not indexed")
	// ErrInvalidSentence is returned for an out-of-range sentence index.
	ErrInvalidSentence = errors.New("invalid sentence index")
)

// Hit is a ranked sentence.
type Hit struct {
	Sentence string
	Score    float64
	Index    int
}

type vector map[string]float64

// index is the TF-IDF model of one transcript.
type index struct {
	seq       uint64
	sentences []string
	idf       map[string]float64
	vectors   []vector
}

// Engine keeps one index per job. The most recently indexed transcript answers queries
// that do not name a job. It is safe for concurrent use.
type Engine struct {
	mu      sync.RWMutex
	indexes map[string]*index
	seq     uint64
	split   func(string) []string
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{
		indexes: make(map[string]*index),
		split:   text.Sentences,
	}
}

func terms(s string) []string {
	var out []string
	for _, w := range text.Words(s) {
		if len([]rune(w)) < 2 || text.IsStopWord(w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func normalize(v vector) vector {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	for t := range v {
		v[t] /= norm
	}
	return v
}

func build(sentences []string) *index {
	idx := &index{sentences: sentences, idf: make(map[string]float64)}

	counts := make([]map[string]int, len(sentences))
	df := make(map[string]int)
	for i, s := range sentences {
		c := make(map[string]int)
		for _, t := range terms(s) {
			c[t]++
		}
		for t := range c {
			df[t]++
		}
		counts[i] = c
	}

	// Smoothed idf: ln((1+n)/(1+df)) + 1.
	n := float64(len(sentences))
	for t, d := range df {
		idx.idf[t] = math.Log((1+n)/(1+float64(d))) + 1
	}

	idx.vectors = make([]vector, len(sentences))
	for i, c := range counts {
		v := make(vector, len(c))
		for t, tf := range c {
			v[t] = float64(tf) * idx.idf[t]
		}
		idx.vectors[i] = normalize(v)
	}
	return idx
}

func (idx *index) query(q string) vector {
	v := make(vector)
	for _, t := range terms(q) {
		if w, ok := idx.idf[t]; ok {
			v[t] += w
		}
	}
	return normalize(v)
}

// Index builds and stores the index for jobID, replacing any previous one.
func (e *Engine) Index(jobID, transcript string) error {
	sentences := e.split(transcript)
	if len(sentences) == 0 {
		return ErrEmptyTranscript
	}
	idx := build(sentences)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	idx.seq = e.seq
	e.indexes[jobID] = idx
	return nil
}

// Drop forgets the index of jobID.
func (e *Engine) Drop(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.indexes, jobID)
}

// Len returns the number of indexed transcripts.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.indexes)
}

// lookup returns the index for jobID, or the latest one when jobID is empty.
func (e *Engine) lookup(jobID string) (string, *index) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if jobID != "" {
		return jobID, e.indexes[jobID]
	}
	var (
		latestID string
		latest   *index
	)
	for id, idx := range e.indexes {
		if latest == nil || idx.seq > latest.seq {
			latestID, latest = id, idx
		}
	}
	return latestID, latest
}

// Search ranks the sentences of jobID's transcript (or the latest one) against query.
// It never fails: when there is nothing to return, hits is empty and message says why.
// The returned id names the transcript that was searched.
func (e *Engine) Search(jobID, query string, limit int) (id string, hits []Hit, message string) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	id, idx := e.lookup(jobID)
	if idx == nil {
		return jobID, nil, MsgNotIndexed
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return id, nil, MsgInvalidQuery
	}

	q := idx.query(query)
	if len(q) == 0 {
		return id, nil, MsgNoMatches
	}

	for i, v := range idx.vectors {
		var score float64
		for t, w := range q {
			score += w * v[t]
		}
		if score > 0 {
			hits = append(hits, Hit{Sentence: idx.sentences[i], Score: score, Index: i})
		}
	}
	if len(hits) == 0 {
		return id, nil, MsgNoMatches
	}

	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return id, hits, ""
}

// Context returns the sentences within window of sentence i, with sentence i wrapped
// in "**", and the transcript's sentence count.
func (e *Engine) Context(jobID string, i, window int) (string, int, error) {
	_, idx := e.lookup(jobID)
	if idx == nil {
		return "", 0, ErrNotIndexed
	}
	n := len(idx.sentences)
	if i < 0 || i >= n {
		return "", n, ErrInvalidSentence
	}
	window = max(0, min(window, n))

	start := max(0, i-window)
	end := min(n, i+window+1)

	parts := make([]string, 0, end-start)
	for k := start; k < end; k++ {
		if k == i {
			parts = append(parts, "**"+idx.sentences[k]+"**")
			continue
		}
		parts = append(parts, idx.sentences[k])
	}
	return strings.Join(parts, " "), n, nil
}

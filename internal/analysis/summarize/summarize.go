// Package summarize builds extractive summaries from transcripts.
package summarize

import (
	"slices"
	"sort"
	"strings"

	"meetscribe/internal/analysis/text"
)

// Bullet prefixes every summary line.
const Bullet = "• "

// EmptySummary is returned for blank transcripts.
const EmptySummary = Bullet + "No transcript content to summarize"

// Summarize returns up to n highest scoring sentences of transcript, in their original
// order, one bullet per line. Sentences without a content word are never picked. Sentences score the sum of their words' frequencies,
// normalized by the most frequent word and ignoring stop words.
func Summarize(transcript string, n int) string {
	if n < 1 {
		n = 1
	}
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return EmptySummary
	}

	sentences := text.Sentences(transcript)
	if len(sentences) <= n {
		return bullets(sentences)
	}

	freq := make(map[string]float64)
	for _, s := range sentences {
		for _, w := range text.ContentWords(s) {
			freq[w]++
		}
	}
	if len(freq) == 0 {
		return bullets(spread(sentences, n))
	}

	var max float64
	for _, f := range freq {
		if f > max {
			max = f
		}
	}
	for w := range freq {
		freq[w] /= max
	}

	scores := make([]float64, len(sentences))
	for i, s := range sentences {
		for _, w := range text.Words(s) {
			scores[i] += freq[w]
		}
	}

	// Only sentences with at least one content word are candidates.
	var idx []int
	for i, score := range scores {
		if score > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return bullets(spread(sentences, n))
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	top := idx[:min(n, len(idx))]
	slices.Sort(top)

	picked := make([]string, 0, len(top))
	for _, i := range top {
		picked = append(picked, sentences[i])
	}
	return bullets(picked)
}

// spread picks n sentences at even intervals, used when no sentence has a content word.
func spread(sentences []string, n int) []string {
	step := len(sentences) / n
	if step < 1 {
		step = 1
	}
	var out []string
	for i := 0; i < len(sentences) && len(out) < n; i += step {
		out = append(out, sentences[i])
	}
	return out
}

func bullets(lines []string) string {
	if len(lines) == 0 {
		return EmptySummary
	}
	return Bullet + strings.Join(lines, "\n"+Bullet)
}

// Paragraph flattens a bullet summary into running text.
func Paragraph(summary string) string {
	summary = strings.ReplaceAll(summary, Bullet, "")
	return strings.ReplaceAll(summary, "\n", " ")
}

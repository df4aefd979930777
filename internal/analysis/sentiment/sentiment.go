// Package sentiment scores transcripts with the VADER lexicon.
package sentiment

import (
	"math"
	"strings"

	"github.com/jonreiter/govader"

	"meetscribe/internal/analysis/text"
	"meetscribe/pkg/api"
)

// Labels used for the overall sentiment.
const (
	Positive = "Positive"
	Negative = "Negative"
	Neutral  = "Neutral"
)

// Threshold is the compound score beyond which a sentence counts as polar.
const Threshold = 0.05

// Analyzer produces sentiment reports. It is safe for concurrent use.
type Analyzer struct {
	sia      *govader.SentimentIntensityAnalyzer
	sentence func(string) []string
}

// NewAnalyzer loads the VADER lexicon.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		sia:      govader.NewSentimentIntensityAnalyzer(),
		sentence: text.Sentences,
	}
}

func label(compound float64) string {
	switch {
	case compound >= Threshold:
		return Positive
	case compound <= -Threshold:
		return Negative
	default:
		return Neutral
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func neutralReport(note string) api.SentimentReport {
	return api.SentimentReport{
		Overall: Neutral,
		Neutral: 100,
		Note:    note,
	}
}

// Analyze scores every sentence of transcript and aggregates the results.
func (a *Analyzer) Analyze(transcript string) api.SentimentReport {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return neutralReport("Empty input provided")
	}

	sentences := a.sentence(transcript)
	if len(sentences) == 0 {
		return neutralReport("No sentences detected")
	}

	var (
		pos, neg, neu              int
		sumCompound                float64
		sumPos, sumNeg, sumNeutral float64
	)
	for _, s := range sentences {
		scores := a.sia.PolarityScores(s)
		sumCompound += scores.Compound
		sumPos += scores.Positive
		sumNeg += scores.Negative
		sumNeutral += scores.Neutral

		switch label(scores.Compound) {
		case Positive:
			pos++
		case Negative:
			neg++
		default:
			neu++
		}
	}

	total := float64(len(sentences))
	avgCompound := sumCompound / total

	return api.SentimentReport{
		Overall:  label(avgCompound),
		Positive: round(float64(pos)/total*100, 1),
		Negative: round(float64(neg)/total*100, 1),
		Neutral:  round(float64(neu)/total*100, 1),
		Compound: round(avgCompound, 2),
		Stats: api.SentimentStats{
			TotalSentences:    len(sentences),
			PositiveSentences: pos,
			NegativeSentences: neg,
			NeutralSentences:  neu,
			AverageScores: api.AverageScores{
				Positive: round(sumPos/total, 3),
				Negative: round(sumNeg/total, 3),
				Neutral:  round(sumNeutral/total, 3),
			},
		},
	}
}

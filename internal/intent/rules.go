package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rightsflow/supervisor-gateway/internal/metrics"
)

// A keyword group contributes its weight once if any of its terms appears as a
// substring of the lowercased input. Scores are normalized by the total weight
// of the category so each score lands in [0,1].
type keywordGroup struct {
	weight float64
	terms  []string
}

var workSignals = []keywordGroup{
	{0.9, []string{"iswc", "isrc"}},
	{0.8, []string{"song", "track", "recording"}},
	{0.7, []string{"find", "search", "look up", "lookup"}},
	{0.6, []string{"writer", "composer", "songwriter", "performer"}},
	{0.4, []string{"title", "work id"}},
	{0.3, []string{"catalogue", "catalog"}},
}

var qaSignals = []keywordGroup{
	{0.9, []string{"apra"}},
	{0.9, []string{"amcos"}},
	{0.6, []string{"licence", "licensing", "license"}},
	{0.6, []string{"royalt"}},
	{0.4, []string{"member", "registration", "register"}},
	{0.3, []string{"who is", "what is", "how do", "explain"}},
}

const (
	minSignal    = 0.15
	ambiguityGap = 0.2
)

// RuleClassifier scores fixed keyword tables. It is a pure function of the
// input text and never fails.
type RuleClassifier struct{}

func NewRuleClassifier() *RuleClassifier { return &RuleClassifier{} }

func (c *RuleClassifier) Classify(_ context.Context, text string) Result {
	lowered := strings.ToLower(text)
	workScore := score(lowered, workSignals)
	qaScore := score(lowered, qaSignals)

	res := decide(workScore, qaScore)
	metrics.IntentClassified.WithLabelValues(string(res.Intent), "rules").Inc()
	return res
}

func score(lowered string, groups []keywordGroup) float64 {
	var matched, total float64
	for _, g := range groups {
		total += g.weight
		for _, term := range g.terms {
			if strings.Contains(lowered, term) {
				matched += g.weight
				break
			}
		}
	}
	if total == 0 {
		return 0
	}
	return matched / total
}

func decide(workScore, qaScore float64) Result {
	top := workScore
	if qaScore > top {
		top = qaScore
	}
	diff := workScore - qaScore
	if diff < 0 {
		diff = -diff
	}

	switch {
	case top < minSignal:
		return Result{
			Intent:     OutOfScope,
			Confidence: 1 - top,
			Reasoning:  fmt.Sprintf("no strong signal (work=%.2f, qa=%.2f)", workScore, qaScore),
		}
	case diff < ambiguityGap && workScore >= minSignal && qaScore >= minSignal:
		return Result{
			Intent:     Ambiguous,
			Confidence: diff,
			Reasoning:  fmt.Sprintf("scores too close to call (work=%.2f, qa=%.2f)", workScore, qaScore),
		}
	case workScore > qaScore:
		return Result{
			Intent:     WorkSearch,
			Confidence: workScore,
			Reasoning:  fmt.Sprintf("work-search signals dominate (work=%.2f, qa=%.2f)", workScore, qaScore),
		}
	default:
		return Result{
			Intent:     QA,
			Confidence: qaScore,
			Reasoning:  fmt.Sprintf("knowledge-base signals dominate (work=%.2f, qa=%.2f)", workScore, qaScore),
		}
	}
}

package trace

import "strings"

const (
	finalAnswerLimit   = 180
	maxAggregateResult = 3

	noCompletionPlaceholder = "(no completion text)"
)

// AggregateSummary is a derived, non-owning view over a timeline.
type AggregateSummary struct {
	RoutingConclusion  string   `json:"routingConclusion"`
	RoutingPath        []string `json:"routingPath"`
	ActionGroups       []string `json:"actionGroups"`
	ActionGroupResults []string `json:"actionGroupResults"`
	FinalAnswer        string   `json:"finalAnswer"`
}

// Summarize derives the aggregate view from a timeline and the overall
// completion text. Pure function of its inputs.
func Summarize(timeline []TimelineEntry, completion string) AggregateSummary {
	s := AggregateSummary{
		RoutingPath:        []string{},
		ActionGroups:       []string{},
		ActionGroupResults: []string{},
	}

	seenCollab := map[string]bool{}
	seenGroup := map[string]bool{}
	seenResult := map[string]bool{}

	for _, entry := range timeline {
		for _, name := range entry.InvokedCollaborators {
			if !seenCollab[name] {
				seenCollab[name] = true
				s.RoutingPath = append(s.RoutingPath, name)
			}
		}
		for _, name := range entry.InvokedActionGroups {
			if !seenGroup[name] {
				seenGroup[name] = true
				s.ActionGroups = append(s.ActionGroups, name)
			}
		}
		for _, out := range entry.ActionOutputs {
			if len(s.ActionGroupResults) < maxAggregateResult && !seenResult[out] {
				seenResult[out] = true
				s.ActionGroupResults = append(s.ActionGroupResults, out)
			}
		}
		for _, out := range entry.CollaboratorOutputs {
			if len(s.ActionGroupResults) < maxAggregateResult && !seenResult[out] {
				seenResult[out] = true
				s.ActionGroupResults = append(s.ActionGroupResults, out)
			}
		}
	}

	switch len(s.RoutingPath) {
	case 0:
		s.RoutingConclusion = "no collaborator hop"
	case 1:
		s.RoutingConclusion = s.RoutingPath[0]
	default:
		s.RoutingConclusion = strings.Join(s.RoutingPath, " -> ")
	}

	s.FinalAnswer = truncateAnswer(completion)
	return s
}

func truncateAnswer(completion string) string {
	trimmed := strings.TrimSpace(completion)
	if trimmed == "" {
		return noCompletionPlaceholder
	}
	runes := []rune(trimmed)
	if len(runes) <= finalAnswerLimit {
		return trimmed
	}
	return string(runes[:finalAnswerLimit]) + "..."
}

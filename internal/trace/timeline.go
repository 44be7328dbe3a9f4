// Package trace reconstructs a human-readable execution timeline from the
// loosely structured event stream the agent runtime emits.
package trace

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RawEvent is one undecoded trace event as delivered by the agent runtime.
type RawEvent = map[string]any

// TimelineEntry is one normalized step. Entries are built once from an
// immutable trace slice and ordered by arrival order.
type TimelineEntry struct {
	Index                int      `json:"index"`
	StepType             string   `json:"stepType"`
	StepLabel            string   `json:"stepLabel"`
	Time                 string   `json:"time,omitempty"`
	RelativeMs           *int64   `json:"relativeMs,omitempty"`
	TraceID              string   `json:"traceId,omitempty"`
	CollaboratorName     string   `json:"collaboratorName,omitempty"`
	InvokedCollaborators []string `json:"invokedCollaborators"`
	InvokedActionGroups  []string `json:"invokedActionGroups"`
	ActionOutputs        []string `json:"actionOutputs"`
	CollaboratorOutputs  []string `json:"collaboratorOutputs"`
	Details              []string `json:"details"`
}

const (
	rationaleLimit = 160
	snippetLimit   = 120
)

// stepKinds maps trace wrapper keys to labels. The slice order is the
// decision order when an event carries more than one step key: the first
// match wins, which keeps decoding deterministic.
var stepKinds = []struct {
	key   string
	label string
}{
	{"routingClassifierTrace", "Routing classifier"},
	{"preProcessingTrace", "Pre-processing"},
	{"orchestrationTrace", "Orchestration"},
	{"postProcessingTrace", "Post-processing"},
	{"guardrailTrace", "Guardrail"},
	{"failureTrace", "Failure"},
	{"customOrchestrationTrace", "Custom orchestration"},
}

// BuildTimeline converts raw trace events into timeline entries. It is a pure
// function: deterministic for a given input, no I/O, and it never panics on
// unrecognized event shapes.
func BuildTimeline(events []RawEvent) []TimelineEntry {
	entries := make([]TimelineEntry, 0, len(events))
	for i, ev := range events {
		entry := buildEntry(i+1, ev)
		entries = append(entries, entry)
	}
	applyRelativeTimes(entries)
	return entries
}

func buildEntry(index int, ev RawEvent) TimelineEntry {
	entry := TimelineEntry{
		Index:                index,
		InvokedCollaborators: []string{},
		InvokedActionGroups:  []string{},
		ActionOutputs:        []string{},
		CollaboratorOutputs:  []string{},
		Details:              []string{},
	}
	entry.Time = stringField(ev, "eventTime")
	entry.CollaboratorName = stringField(ev, "collaboratorName")

	wrapper, ok := mapField(ev, "trace")
	if !ok {
		// Degraded but non-crashing: surface what the event carried. Keys are
		// sorted so the fallback entry is deterministic.
		entry.StepType = "unknown"
		entry.StepLabel = "Unrecognized event"
		keys := make([]string, 0, len(ev))
		for k := range ev {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		entry.Details = append(entry.Details, keys...)
		return entry
	}

	for _, kind := range stepKinds {
		payload, present := mapField(wrapper, kind.key)
		if !present {
			continue
		}
		entry.StepType = kind.key
		entry.StepLabel = kind.label
		entry.TraceID = findTraceID(payload)

		switch kind.key {
		case "guardrailTrace":
			extractGuardrail(&entry, payload)
		case "failureTrace":
			extractFailure(&entry, payload)
		default:
			extractOrchestration(&entry, payload)
		}
		return entry
	}

	// A trace wrapper with no known step key behaves like an unrecognized event.
	entry.StepType = "unknown"
	entry.StepLabel = "Unrecognized trace step"
	keys := make([]string, 0, len(wrapper))
	for k := range wrapper {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entry.Details = append(entry.Details, keys...)
	return entry
}

// extractOrchestration handles the orchestration-shaped payloads: model
// invocation bookkeeping, rationale, nested invocation inputs and
// observations. Extractors only append; a missing field contributes nothing.
func extractOrchestration(entry *TimelineEntry, payload map[string]any) {
	if mi, ok := mapField(payload, "modelInvocationInput"); ok {
		if model := stringField(mi, "foundationModel"); model != "" {
			entry.Details = append(entry.Details, fmt.Sprintf("model invocation started (%s)", model))
		} else {
			entry.Details = append(entry.Details, "model invocation started")
		}
	}

	if mo, ok := mapField(payload, "modelInvocationOutput"); ok {
		if meta, ok := mapField(mo, "metadata"); ok {
			if usage, ok := mapField(meta, "usage"); ok {
				in := intField(usage, "inputTokens")
				out := intField(usage, "outputTokens")
				entry.Details = append(entry.Details,
					fmt.Sprintf("model usage: %d input / %d output tokens", in, out))
			}
		}
	}

	if rat, ok := mapField(payload, "rationale"); ok {
		if text := stringField(rat, "text"); text != "" {
			entry.Details = append(entry.Details, "rationale: "+snippet(text, rationaleLimit))
		}
	}

	if in, ok := mapField(payload, "invocationInput"); ok {
		extractInvocationInput(entry, in)
	}

	if obs, ok := mapField(payload, "observation"); ok {
		extractObservation(entry, obs)
	}
}

func extractInvocationInput(entry *TimelineEntry, in map[string]any) {
	if collab, ok := mapField(in, "agentCollaboratorInvocationInput"); ok {
		name := stringField(collab, "agentCollaboratorName")
		if name != "" {
			entry.InvokedCollaborators = append(entry.InvokedCollaborators, name)
			entry.Details = append(entry.Details, fmt.Sprintf("delegating to collaborator %q", name))
		}
		if input, ok := mapField(collab, "input"); ok {
			if text := stringField(input, "text"); text != "" {
				entry.Details = append(entry.Details, "collaborator input: "+snippet(text, snippetLimit))
			}
		}
	}

	if ag, ok := mapField(in, "actionGroupInvocationInput"); ok {
		name := stringField(ag, "actionGroupName")
		if name != "" {
			entry.InvokedActionGroups = append(entry.InvokedActionGroups, name)
			if fn := stringField(ag, "function"); fn != "" {
				entry.Details = append(entry.Details,
					fmt.Sprintf("invoking action group %q function %q", name, fn))
			} else {
				entry.Details = append(entry.Details, fmt.Sprintf("invoking action group %q", name))
			}
		}
	}

	if kb, ok := mapField(in, "knowledgeBaseLookupInput"); ok {
		if text := stringField(kb, "text"); text != "" {
			entry.Details = append(entry.Details, "knowledge base lookup: "+snippet(text, snippetLimit))
		}
	}
}

func extractObservation(entry *TimelineEntry, obs map[string]any) {
	if out, ok := mapField(obs, "actionGroupInvocationOutput"); ok {
		if text := stringField(out, "text"); text != "" {
			s := snippet(text, snippetLimit)
			entry.ActionOutputs = append(entry.ActionOutputs, s)
			entry.Details = append(entry.Details, "action group result: "+s)
		}
	}

	if out, ok := mapField(obs, "agentCollaboratorInvocationOutput"); ok {
		name := stringField(out, "agentCollaboratorName")
		if inner, ok := mapField(out, "output"); ok {
			if text := stringField(inner, "text"); text != "" {
				s := snippet(text, snippetLimit)
				entry.CollaboratorOutputs = append(entry.CollaboratorOutputs, s)
				if name != "" {
					entry.Details = append(entry.Details, fmt.Sprintf("collaborator %q result: %s", name, s))
				} else {
					entry.Details = append(entry.Details, "collaborator result: "+s)
				}
			}
		}
	}

	if out, ok := mapField(obs, "knowledgeBaseLookupOutput"); ok {
		if refs, ok := out["retrievedReferences"].([]any); ok {
			entry.Details = append(entry.Details,
				fmt.Sprintf("knowledge base returned %d references", len(refs)))
		}
	}

	if final, ok := mapField(obs, "finalResponse"); ok {
		if text := stringField(final, "text"); text != "" {
			entry.Details = append(entry.Details, "final response: "+snippet(text, snippetLimit))
		}
	}
}

func extractGuardrail(entry *TimelineEntry, payload map[string]any) {
	action := stringField(payload, "action")
	inCount := assessmentCount(payload, "inputAssessments")
	outCount := assessmentCount(payload, "outputAssessments")
	if action != "" {
		entry.Details = append(entry.Details,
			fmt.Sprintf("guardrail action %s: %d input / %d output assessments", action, inCount, outCount))
	} else {
		entry.Details = append(entry.Details,
			fmt.Sprintf("guardrail: %d input / %d output assessments", inCount, outCount))
	}
}

func extractFailure(entry *TimelineEntry, payload map[string]any) {
	reason := stringField(payload, "failureReason")
	code := stringField(payload, "failureCode")
	switch {
	case reason != "" && code != "":
		entry.Details = append(entry.Details, fmt.Sprintf("failure (%s): %s", code, snippet(reason, rationaleLimit)))
	case reason != "":
		entry.Details = append(entry.Details, "failure: "+snippet(reason, rationaleLimit))
	case code != "":
		entry.Details = append(entry.Details, "failure code: "+code)
	}
}

// applyRelativeTimes computes RelativeMs against the first entry's timestamp.
// If the first entry's time does not parse, no entry gets a relative time.
func applyRelativeTimes(entries []TimelineEntry) {
	if len(entries) == 0 {
		return
	}
	first, ok := parseTime(entries[0].Time)
	if !ok {
		return
	}
	for i := range entries {
		ts, ok := parseTime(entries[i].Time)
		if !ok {
			continue
		}
		ms := ts.Sub(first).Milliseconds()
		entries[i].RelativeMs = &ms
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// findTraceID probes the payload and its immediate sub-objects in a fixed
// order for a traceId field.
func findTraceID(payload map[string]any) string {
	if id := stringField(payload, "traceId"); id != "" {
		return id
	}
	for _, key := range []string{
		"modelInvocationInput", "modelInvocationOutput",
		"rationale", "invocationInput", "observation",
	} {
		if sub, ok := mapField(payload, key); ok {
			if id := stringField(sub, "traceId"); id != "" {
				return id
			}
		}
	}
	return ""
}

func assessmentCount(m map[string]any, key string) int {
	if v, ok := m[key].([]any); ok {
		return len(v)
	}
	return 0
}

func mapField(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// snippet collapses whitespace and truncates to limit runes with an ellipsis.
func snippet(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// Package classify implements the task classifier: a deterministic,
// pure, single-threaded keyword heuristic that assigns a TaskProfile to an
// inbound request.
package classify

import (
	"regexp"
	"strings"
)

// TaskType enumerates the task categories defines.
type TaskType string

const (
	TaskChat TaskType = "chat"
	TaskCodeGeneration TaskType = "code_generation"
	TaskCodeReview TaskType = "code_review"
	TaskResearch TaskType = "research"
	TaskCreative TaskType = "creative"
	TaskAnalysis TaskType = "analysis"
	TaskToolUse TaskType = "tool_use"
	TaskUnknown TaskType = "unknown"
)

// TaskProfile describes the classified difficulty of one request.
type TaskProfile struct {
	TaskType TaskType
	Complexity float64
}

type rule struct {
	taskType TaskType
	complexity float64
	signals []*regexp.Regexp
}

var codeFence = regexp.MustCompile("```")

// rules is evaluated in order; the first rule whose signal matches sets
// task_type (first match wins); complexity is the max contribution of every
// rule that matches, clamped to [0,1] — exactly table.
var rules = []rule{
	{TaskAnalysis, 0.85, compileWords("design", "architect", "algorithm", "distributed", "proof")},
	{TaskCodeGeneration, 0.60, compileWords("implement", "refactor")},
	{TaskCodeReview, 0.55, compileWords("review", "bug in", "why does")},
	{TaskResearch, 0.40, compileWords("search", "find out", "look up", "what is the latest")},
	{TaskCreative, 0.45, compileWords("write a story", "poem", "rewrite creatively")},
}

func compileWords(words...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(regexp.QuoteMeta(strings.ToLower(w))))
	}
	return out
}

// Classify assigns a TaskProfile to the last user message in messages
// (lastUserContent) given the set of tool names currently available. It is
// deterministic and has no side effects.
func Classify(lastUserContent string, availableTools []string) TaskProfile {
	if strings.TrimSpace(lastUserContent) == "" {
		return TaskProfile{TaskType: TaskChat, Complexity: 0.0}
	}

	lower := strings.ToLower(lastUserContent)

	taskType := TaskUnknown
	complexity := 0.0
	matchedAny := false

	for _, r := range rules {
		matched := false
		for _, sig := range r.signals {
			if sig.MatchString(lower) {
				matched = true
				break
			}
		}
		if r.taskType == TaskCodeGeneration && codeFence.MatchString(lastUserContent) {
			matched = true
		}
		if !matched {
			continue
		}
		if !matchedAny {
			taskType = r.taskType
		}
		matchedAny = true
		if r.complexity > complexity {
			complexity = r.complexity
		}
	}

	for _, tool := range availableTools {
		if tool == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(tool)) {
			if !matchedAny {
				taskType = TaskToolUse
			}
			matchedAny = true
			if complexity < 0.35 {
				complexity = 0.35
			}
			break
		}
	}

	if !matchedAny {
		taskType = TaskChat
		if complexity == 0 {
			complexity = 0.15
		}
	}

	if len(lastUserContent) > 1500 {
		complexity += 0.15
	}

	if complexity > 1.0 {
		complexity = 1.0
	}
	if complexity < 0.0 {
		complexity = 0.0
	}

	return TaskProfile{TaskType: taskType, Complexity: complexity}
}

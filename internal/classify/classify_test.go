package classify

import "testing"

func TestClassify_EmptyContent(t *testing.T) {
	got := Classify("", nil)
	if got.TaskType != TaskChat || got.Complexity != 0.0 {
		t.Errorf("empty content: got %+v", got)
	}
}

func TestClassify_Rules(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    TaskType
	}{
		{"design", "please design a distributed consensus algorithm", TaskAnalysis},
		{"implement", "can you implement this function for me", TaskCodeGeneration},
		{"review", "review this diff, why does it fail", TaskCodeReview},
		{"research", "search for the latest papers on this", TaskResearch},
		{"creative", "write a story about a dragon", TaskCreative},
		{"plain chat", "hello, how are you?", TaskChat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.content, nil)
			if got.TaskType != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.content, got.TaskType, tt.want)
			}
		})
	}
}

func TestClassify_CodeFenceForcesCodeGeneration(t *testing.T) {
	got := Classify("take a look ```go\nfunc main(){}\n```", nil)
	if got.TaskType != TaskCodeGeneration {
		t.Errorf("code fence: got %v, want %v", got.TaskType, TaskCodeGeneration)
	}
}

func TestClassify_ToolMentionRaisesComplexity(t *testing.T) {
	got := Classify("please exec_shell the build script", []string{"exec_shell"})
	if got.Complexity < 0.35 {
		t.Errorf("tool-use complexity too low: %v", got.Complexity)
	}
}

func TestClassify_LongContentAddsComplexity(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}
	short := Classify("hello", nil)
	lng := Classify(string(long), nil)
	if lng.Complexity <= short.Complexity {
		t.Errorf("expected long content to raise complexity: short=%v long=%v", short.Complexity, lng.Complexity)
	}
}

func TestClassify_ComplexityClamped(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'a'
	}
	content := "design a distributed architect proof " + string(long)
	got := Classify(content, nil)
	if got.Complexity > 1.0 {
		t.Errorf("complexity not clamped: %v", got.Complexity)
	}
}

func TestClassify_Deterministic(t *testing.T) {
	const msg = "implement a new feature for review"
	a := Classify(msg, []string{"exec_shell"})
	b := Classify(msg, []string{"exec_shell"})
	if a != b {
		t.Errorf("Classify is not deterministic: %+v vs %+v", a, b)
	}
}

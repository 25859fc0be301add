package providers

import "testing"

func TestCleanSchemaForProvider_StripsSchemaKeywords(t *testing.T) {
	schema := map[string]interface{}{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"$id":     "some-id",
		"type":    "object",
	}
	cleaned := CleanSchemaForProvider(schema, "openai")
	if _, ok := cleaned["$schema"]; ok {
		t.Error("expected $schema stripped")
	}
	if _, ok := cleaned["$id"]; ok {
		t.Error("expected $id stripped")
	}
	if cleaned["type"] != "object" {
		t.Errorf("type = %v, want object", cleaned["type"])
	}
}

func TestCleanSchemaForProvider_AnthropicDropsAdditionalProperties(t *testing.T) {
	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
	}
	cleaned := CleanSchemaForProvider(schema, "anthropic")
	if _, ok := cleaned["additionalProperties"]; ok {
		t.Error("expected additionalProperties stripped for anthropic")
	}

	keptForOpenAI := CleanSchemaForProvider(schema, "openai")
	if _, ok := keptForOpenAI["additionalProperties"]; !ok {
		t.Error("expected additionalProperties kept for openai")
	}
}

func TestCleanSchemaForProvider_RecursesIntoNestedSchemas(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"nested": map[string]interface{}{
				"$schema": "strip-me",
				"type":    "string",
			},
		},
	}
	cleaned := CleanSchemaForProvider(schema, "openai")
	props := cleaned["properties"].(map[string]interface{})
	nested := props["nested"].(map[string]interface{})
	if _, ok := nested["$schema"]; ok {
		t.Error("expected nested $schema stripped")
	}
}

func TestCleanSchemaForProvider_DoesNotMutateInput(t *testing.T) {
	schema := map[string]interface{}{"$schema": "x", "type": "object"}
	_ = CleanSchemaForProvider(schema, "openai")
	if _, ok := schema["$schema"]; !ok {
		t.Error("input schema must not be mutated")
	}
}

func TestCleanSchemaForProvider_NilSchema(t *testing.T) {
	if got := CleanSchemaForProvider(nil, "openai"); got != nil {
		t.Errorf("CleanSchemaForProvider(nil) = %v, want nil", got)
	}
}

func TestCleanToolSchemas(t *testing.T) {
	tools := []ToolDefinition{
		{Type: "function", Function: ToolFunctionSchema{
			Name: "exec_shell",
			Parameters: map[string]interface{}{
				"$schema": "strip-me",
				"type":    "object",
			},
		}},
	}
	cleaned := CleanToolSchemas(tools, "anthropic")
	if _, ok := cleaned[0].Function.Parameters["$schema"]; ok {
		t.Error("expected $schema stripped from tool parameters")
	}
	if cleaned[0].Function.Name != "exec_shell" {
		t.Errorf("tool name changed unexpectedly: %q", cleaned[0].Function.Name)
	}
}

package protocol

import (
	"encoding/json"
	"testing"
)

func TestChatRequest_UnmarshalJSON_IgnoresInjectedAuthContext(t *testing.T) {
	raw := []byte(`{
		"model": "openai/gpt-4o",
		"messages": [{"role": "user", "content": "hi"}],
		"auth_context": {
			"sender_id": "attacker",
			"channel": "cli",
			"permissions": {"level": "admin"}
		}
	}`)

	var req ChatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if req.AuthContext != nil {
		t.Fatalf("AuthContext = %+v, want nil — auth_context must never be attacker-settable via JSON", req.AuthContext)
	}
	if req.Model != "openai/gpt-4o" {
		t.Errorf("Model = %q, want openai/gpt-4o", req.Model)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "hi" {
		t.Errorf("Messages = %+v", req.Messages)
	}
}

func TestChatRequest_MarshalJSON_NeverEmitsAuthContext(t *testing.T) {
	req := ChatRequest{
		Model:    "openai/gpt-4o",
		Messages: []Message{{Role: "user", Content: "hi"}},
		AuthContext: &AuthContext{
			SenderID: "alice",
			Channel:  "cli",
		},
	}
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("re-Unmarshal: %v", err)
	}
	if _, present := generic["auth_context"]; present {
		t.Error("auth_context must never appear on the wire, even when set in-process")
	}
}

func TestChatRequest_RoundTripPreservesMessagesNotAuth(t *testing.T) {
	original := ChatRequest{
		Model:       "anthropic/claude-opus",
		Messages:    []Message{{Role: "user", Content: "ping"}},
		MaxTokens:   512,
		Temperature: 0.5,
		AuthContext: &AuthContext{SenderID: "bob"},
	}
	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded ChatRequest
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.AuthContext != nil {
		t.Error("AuthContext must not survive a marshal/unmarshal round trip")
	}
	if decoded.Model != original.Model || decoded.MaxTokens != original.MaxTokens {
		t.Errorf("decoded = %+v, want model/max_tokens preserved", decoded)
	}
}

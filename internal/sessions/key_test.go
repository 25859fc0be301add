package sessions

import "testing"

func TestBuildSessionKey(t *testing.T) {
	got := BuildSessionKey("default", "telegram", PeerGroup, "-100123456")
	want := "agent:default:telegram:group:-100123456"
	if got != want {
		t.Errorf("BuildSessionKey() = %q, want %q", got, want)
	}
}

func TestParseSessionKey(t *testing.T) {
	agentID, rest := ParseSessionKey("agent:default:cli:direct:local")
	if agentID != "default" || rest != "cli:direct:local" {
		t.Errorf("ParseSessionKey() = (%q, %q)", agentID, rest)
	}
}

func TestParseSessionKey_InvalidFormat(t *testing.T) {
	agentID, rest := ParseSessionKey("not-a-session-key")
	if agentID != "" || rest != "" {
		t.Errorf("expected empty results for malformed key, got (%q, %q)", agentID, rest)
	}
}

func TestParseSessionKey_WrongPrefix(t *testing.T) {
	agentID, rest := ParseSessionKey("user:default:cli:direct:local")
	if agentID != "" || rest != "" {
		t.Errorf("expected empty results for non-agent prefix, got (%q, %q)", agentID, rest)
	}
}

func TestPeerKindFromGroup(t *testing.T) {
	if got := PeerKindFromGroup(true); got != PeerGroup {
		t.Errorf("PeerKindFromGroup(true) = %q, want group", got)
	}
	if got := PeerKindFromGroup(false); got != PeerDirect {
		t.Errorf("PeerKindFromGroup(false) = %q, want direct", got)
	}
}

func TestBuildAndParseRoundTrip(t *testing.T) {
	key := BuildSessionKey("research-agent", "cli", PeerDirect, "local")
	agentID, rest := ParseSessionKey(key)
	if agentID != "research-agent" || rest != "cli:direct:local" {
		t.Errorf("round trip mismatch: agentID=%q rest=%q", agentID, rest)
	}
}

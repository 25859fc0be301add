// Package sessions builds and parses the canonical session key used to
// scope conversation history:
//
//	agent:{agentId}:{channel}:{peerKind}:{chatId}
//
// Examples:
//
//	agent:default:cli:direct:local
//	agent:default:telegram:group:-100123456
package sessions

import (
	"fmt"
	"strings"
)

// PeerKind distinguishes direct messages from group conversations.
type PeerKind string

const (
	PeerDirect PeerKind = "direct"
	PeerGroup PeerKind = "group"
)

// BuildSessionKey builds the canonical session key for a channel conversation.
func BuildSessionKey(agentID, channel string, kind PeerKind, chatID string) string {
	return fmt.Sprintf("agent:%s:%s:%s:%s", agentID, channel, kind, chatID)
}

// ParseSessionKey extracts the agentID and rest from a canonical session key.
// Returns ("", "") if the key is not in the expected format.
func ParseSessionKey(key string) (agentID, rest string) {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 || parts[0] != "agent" {
		return "", ""
	}
	return parts[1], parts[2]
}

// PeerKindFromGroup returns PeerGroup if isGroup is true, PeerDirect otherwise.
func PeerKindFromGroup(isGroup bool) PeerKind {
	if isGroup {
		return PeerGroup
	}
	return PeerDirect
}

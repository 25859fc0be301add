package bus

import "context"

// InboundMessage represents a message received from a channel (CLI, chat
// adapter, etc.) destined for the Agent Loop.
type InboundMessage struct {
	Channel string `json:"channel"`
	SenderID string `json:"sender_id"`
	ChatID string `json:"chat_id"`
	Content string `json:"content"`
	Media []string `json:"media,omitempty"`
	SessionKey string `json:"session_key,omitempty"`
	PeerKind string `json:"peer_kind,omitempty"` // "direct" or "group"
	UserID string `json:"user_id,omitempty"`
	HistoryLimit int `json:"history_limit,omitempty"` // max turns to keep (0=unlimited)
	Metadata map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage represents a reply to be delivered back through a channel.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID string `json:"chat_id"`
	Content string `json:"content"`
	Media []MediaAttachment `json:"media,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// MediaAttachment is a media file sent alongside an OutboundMessage.
type MediaAttachment struct {
	URL string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// MessageHandler handles an inbound message from a specific channel.
type MessageHandler func(InboundMessage) error

// MessageRouter abstracts inbound/outbound message routing between
// channels and the agent runtime.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
	PublishOutbound(msg OutboundMessage)
	SubscribeOutbound(ctx context.Context) (OutboundMessage, bool)
}

package tools

import (
	"context"

	"github.com/weave-logic-ai/clawft/internal/permissions"
)

// Tool execution context keys. These replace mutable setter fields on tool
// instances, keeping tools safe for concurrent execution across sessions.
// Values are injected by the agent loop / registry and read by individual
// tools during Execute().

type toolContextKey string

const (
	ctxChannel toolContextKey = "tool_channel"
	ctxChatID toolContextKey = "tool_chat_id"
	ctxSandboxKey toolContextKey = "tool_sandbox_key"
	ctxWorkspace toolContextKey = "tool_workspace"
	ctxAuth toolContextKey = "tool_auth_context"
	ctxSenderID toolContextKey = "tool_sender_id"
)

func WithToolChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, ctxChannel, channel)
}

func ToolChannelFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxChannel).(string)
	return v
}

func WithToolChatID(ctx context.Context, chatID string) context.Context {
	return context.WithValue(ctx, ctxChatID, chatID)
}

func ToolChatIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxChatID).(string)
	return v
}

func WithToolSandboxKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxSandboxKey, key)
}

func ToolSandboxKeyFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxSandboxKey).(string)
	return v
}

func WithToolWorkspace(ctx context.Context, ws string) context.Context {
	return context.WithValue(ctx, ctxWorkspace, ws)
}

func ToolWorkspaceFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxWorkspace).(string)
	return v
}

// WithAuthContext threads the resolved permission set through tool
// execution so a tool can consult policy (e.g. CommandPolicy, UrlPolicy)
// without re-resolving it.
func WithAuthContext(ctx context.Context, perm permissions.UserPermissions) context.Context {
	return context.WithValue(ctx, ctxAuth, perm)
}

func AuthContextFromCtx(ctx context.Context) (permissions.UserPermissions, bool) {
	v, ok := ctx.Value(ctxAuth).(permissions.UserPermissions)
	return v, ok
}

func WithSenderID(ctx context.Context, senderID string) context.Context {
	return context.WithValue(ctx, ctxSenderID, senderID)
}

func SenderIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxSenderID).(string)
	return v
}

// Package webchat is the channel facade: account-aware send, batch send, and
// monitoring glue between the connection layer and the host runtime.
package webchat

import "strings"

// NormalizeTarget brings a target into the canonical "chat:<id>" or
// "user:<id>" form. Targets containing "@" are treated as user ids; anything
// else without a prefix defaults to a chat room.
func NormalizeTarget(target string) string {
	if strings.HasPrefix(target, "user:") || strings.HasPrefix(target, "chat:") {
		return target
	}
	if strings.Contains(target, "@") {
		return "user:" + target
	}
	return "chat:" + target
}

// FormatTarget strips the prefix for display.
func FormatTarget(target string) string {
	target = strings.TrimPrefix(target, "user:")
	return strings.TrimPrefix(target, "chat:")
}

// ExtractChatID strips a "chat:" or "user:" prefix, yielding the wire-level
// chat id.
func ExtractChatID(target string) string {
	if rest, ok := strings.CutPrefix(target, "chat:"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(target, "user:"); ok {
		return rest
	}
	return target
}

// ExtractUserID returns the user id for "user:" targets, or "" otherwise.
func ExtractUserID(target string) string {
	if rest, ok := strings.CutPrefix(target, "user:"); ok {
		return rest
	}
	return ""
}

// IsDirectTarget reports whether the target addresses a user directly.
func IsDirectTarget(target string) bool {
	return strings.HasPrefix(target, "user:")
}

// LooksLikeTargetID reports whether target could be a web-chat id at all.
func LooksLikeTargetID(target string) bool {
	return target != ""
}

package store

import (
	"fmt"
	"strings"

	relay_errors "relay-chat/pkg/errors"
)

const (
	UsersRoot         = "users"
	UserChatsRoot     = "userChats"
	ChatsRoot         = "chats"
	MessagesRoot      = "messages"
	BlockListRoot     = "userBlockList"
	StarredRoot       = "userStarredMessages"
	pushTokensSegment = "pushTokens"
)

func UserPath(uid string) string {
	return Join(UsersRoot, uid)
}

func PushTokensPath(uid string) string {
	return Join(UsersRoot, uid, pushTokensSegment)
}

func UserChatsPath(uid string) string {
	return Join(UserChatsRoot, uid)
}

func ChatPath(chatID string) string {
	return Join(ChatsRoot, chatID)
}

func MessagesPath(chatID string) string {
	return Join(MessagesRoot, chatID)
}

func BlockPath(blockerUID, blockedUID string) string {
	return Join(BlockListRoot, blockerUID, blockedUID)
}

func StarredPath(uid string) string {
	return Join(StarredRoot, uid)
}

func StarPath(uid, chatID, messageID string) string {
	return Join(StarredRoot, uid, chatID, messageID)
}

func Join(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// Split returns the segments of a path. The root is the empty path.
func Split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func LastSegment(path string) string {
	segs := Split(path)
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// Validate rejects paths with empty segments or characters the hosted
// realtime database refuses in keys.
func Validate(path string) error {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" || strings.ContainsAny(seg, ".#$[]") {
			return fmt.Errorf("%q: %w", path, relay_errors.ErrInvalidPath)
		}
	}
	return nil
}

// Related reports whether a write at one path can change the value at the
// other, that is whether either is an ancestor of the other.
func Related(a, b string) bool {
	as, bs := Split(a), Split(b)
	n := len(as)
	if len(bs) < n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

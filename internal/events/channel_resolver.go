package events

import (
	"fmt"
	"strings"
)

const channelPrefix = "rt:changes:"

// DocumentChannel is the Pub/Sub channel that carries writes of one
// document.
func DocumentChannel(collection, id string) string {
	return fmt.Sprintf("%s%s/%s", channelPrefix, collection, id)
}

// CollectionPattern matches the channels of every document in collection.
func CollectionPattern(collection string) string {
	return fmt.Sprintf("%s%s/*", channelPrefix, collection)
}

// ParseChannel splits a document channel into collection and id.
func ParseChannel(channel string) (collection, id string, ok bool) {
	rest, found := strings.CutPrefix(channel, channelPrefix)
	if !found {
		return "", "", false
	}
	collection, id, ok = strings.Cut(rest, "/")
	if !ok || collection == "" || id == "" {
		return "", "", false
	}
	return collection, id, true
}

// SessionsChannel carries the uids whose live sessions must end on every
// instance.
const SessionsChannel = "rt:sessions:disconnect"

package batcher

import (
	"encoding/json"
	"fmt"
)

func presenceSetKey(pageID string) string { return fmt.Sprintf("page:%s:presence", pageID) }

// typingZsetKey is the page:{id}:typing zset: one zset per page, member
// per typer, score the unix-ms of their last keystroke. Stale members
// (older than the 5s typing window) are pruned opportunistically on
// flush.
func typingZsetKey(pageID string) string { return fmt.Sprintf("page:%s:typing", pageID) }

func analyticsCountKey(bucketKey string) string { return fmt.Sprintf("analytics:%s:count", bucketKey) }

func analyticsUsersKey(bucketKey string) string { return fmt.Sprintf("analytics:%s:users", bucketKey) }

func encodeTyping(ev typingEvent) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"user_id":  ev.userID,
		"reply_to": ev.replyTo,
		"ts":       ev.ts,
	})
	return string(raw)
}

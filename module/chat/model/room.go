package model

import (
	"sort"
	"strings"
	"time"
)

// ChatRoom 1:1 房间；_id 由两个参与者排序后拼接，天然幂等
type ChatRoom struct {
	ID                   string    `bson:"_id" json:"_id"`
	Participants         []string  `bson:"participants" json:"participants"`
	LastMessageID        string    `bson:"lastMessageId,omitempty" json:"lastMessageId,omitempty"`
	LastMessageContent   string    `bson:"lastMessageContent" json:"lastMessageContent"`
	LastMessageTimestamp time.Time `bson:"lastMessageTimestamp" json:"lastMessageTimestamp"`
	CreatedAt            time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time `bson:"updatedAt" json:"updatedAt"`
}

func (ChatRoom) GetTableName() string { return "chatrooms" }

const roomSep = "_"

// RoomID is order independent: RoomID(a, b) == RoomID(b, a).
func RoomID(a, b string) string {
	p := []string{a, b}
	sort.Strings(p)
	return p[0] + roomSep + p[1]
}

// Participants returns the sorted pair for a room.
func Participants(a, b string) []string {
	p := []string{a, b}
	sort.Strings(p)
	return p
}

func (r *ChatRoom) HasParticipant(userID string) bool {
	for _, p := range r.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the other participant, "" if userID is not in the room.
func (r *ChatRoom) Counterpart(userID string) string {
	if len(r.Participants) != 2 || !r.HasParticipant(userID) {
		return ""
	}
	if r.Participants[0] == userID {
		return r.Participants[1]
	}
	return r.Participants[0]
}

// SplitRoomID recovers the pair from a well formed id. Ids containing the
// separator more than once are rejected since the split would be ambiguous.
func SplitRoomID(id string) (string, string, bool) {
	parts := strings.Split(id, roomSep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

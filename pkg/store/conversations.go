package store

import (
	"sort"
	"sync"

	"github.com/ecamargo/wabot/pkg/gateway"
)

// Conversations holds the per-chat message maps used as context for reply
// generation. Each chat is bounded by limit: once exceeded, the oldest
// messages by date are evicted.
type Conversations struct {
	mu    sync.RWMutex
	chats map[string]map[string]gateway.Message
	limit int
}

func NewConversations(limit int) *Conversations {
	if limit <= 0 {
		limit = 20
	}
	return &Conversations{
		chats: make(map[string]map[string]gateway.Message),
		limit: limit,
	}
}

// Merge adds msgs into the chat's message map. Existing entries are retained,
// ids already present are overwritten with the newest payload.
func (c *Conversations) Merge(chatID string, msgs []gateway.Message) {
	if chatID == "" || len(msgs) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	chat := c.chats[chatID]
	if chat == nil {
		chat = make(map[string]gateway.Message, len(msgs))
		c.chats[chatID] = chat
	}
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		chat[m.ID] = m
	}

	if len(chat) > c.limit {
		ordered := sortedByDate(chat)
		for _, m := range ordered[:len(ordered)-c.limit] {
			delete(chat, m.ID)
		}
	}
}

// History returns the chat's messages ordered oldest first.
func (c *Conversations) History(chatID string) []gateway.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	chat := c.chats[chatID]
	if len(chat) == 0 {
		return nil
	}
	return sortedByDate(chat)
}

// Len returns the number of messages tracked for a chat.
func (c *Conversations) Len(chatID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chats[chatID])
}

func sortedByDate(chat map[string]gateway.Message) []gateway.Message {
	out := make([]gateway.Message, 0, len(chat))
	for _, m := range chat {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

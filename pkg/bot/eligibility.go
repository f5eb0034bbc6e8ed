package bot

import (
	"strings"

	"github.com/ecamargo/wabot/pkg/config"
	"github.com/ecamargo/wabot/pkg/gateway"
)

// canReply decides whether the bot is allowed to answer this message at all.
// Group chats, skip-labeled chats, blacklisted numbers and numbers outside a
// non-empty whitelist are all silently ignored.
func canReply(msg *gateway.InboundMessage, cfg *config.Config) bool {
	if strings.HasSuffix(msg.Chat.ID, "@g.us") {
		return false
	}

	for _, label := range msg.Chat.Labels {
		for _, skip := range cfg.Labels.Skip {
			if label == skip {
				return false
			}
		}
	}

	for _, number := range cfg.Numbers.Blacklist {
		if msg.FromNumber == number {
			return false
		}
	}

	if len(cfg.Numbers.Whitelist) > 0 {
		for _, number := range cfg.Numbers.Whitelist {
			if msg.FromNumber == number {
				return true
			}
		}
		return false
	}

	return true
}

// wantsHuman reports whether the message is an explicit handover request.
func wantsHuman(body string) bool {
	return strings.EqualFold(strings.TrimSpace(body), "human")
}

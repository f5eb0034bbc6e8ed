package bot

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ecamargo/wabot/pkg/config"
	"github.com/ecamargo/wabot/pkg/gateway"
	"github.com/ecamargo/wabot/pkg/logger"
	"github.com/ecamargo/wabot/pkg/providers"
	"github.com/ecamargo/wabot/pkg/store"
	"github.com/ecamargo/wabot/pkg/tools"
	"github.com/ecamargo/wabot/pkg/utils"
)

// processTimeout bounds a single webhook event end to end, including every
// gateway and model round trip it triggers.
const processTimeout = 2 * time.Minute

// Gateway is the slice of the messaging client the pipeline uses.
type Gateway interface {
	SendMessage(ctx context.Context, req gateway.SendRequest) (*gateway.MessageRecord, bool)
	PullMembers(ctx context.Context, device *gateway.Device) []gateway.TeamMember
	PullChatMessages(ctx context.Context, chat gateway.Chat, device *gateway.Device) []gateway.Message
	UpdateChatLabels(ctx context.Context, chat gateway.Chat, device *gateway.Device, labels []string)
	UpdateChatMetadata(ctx context.Context, chat gateway.Chat, device *gateway.Device, metadata []gateway.MetadataEntry)
	AssignChat(ctx context.Context, chat gateway.Chat, device *gateway.Device, memberID string) error
	SendTypingState(ctx context.Context, chatPhone string, device *gateway.Device)
}

// Transcriber converts an audio message to text. ok is false when the audio
// could not be transcribed.
type Transcriber interface {
	Transcribe(ctx context.Context, msg *gateway.InboundMessage, device *gateway.Device) (text string, ok bool)
}

// Pipeline turns accepted webhook events into replies. Events for different
// chats run concurrently up to the in-flight ceiling; events for the same chat
// are serialized by a per-chat lock so conversation state stays ordered.
type Pipeline struct {
	gw          Gateway
	provider    providers.LLMProvider
	tools       *tools.Registry
	conv        *store.Conversations
	counters    *store.Counters
	transcriber Transcriber
	device      *gateway.Device
	cfg         *config.Config

	sem       chan struct{}
	chatLocks sync.Map // chat id -> *sync.Mutex
	marked    sync.Map // chat id -> struct{}, bot labels already applied
	rng       *rand.Rand
	rngMu     sync.Mutex
}

func NewPipeline(gw Gateway, provider providers.LLMProvider, registry *tools.Registry,
	conv *store.Conversations, counters *store.Counters, transcriber Transcriber,
	device *gateway.Device, cfg *config.Config) *Pipeline {

	return &Pipeline{
		gw:          gw,
		provider:    provider,
		tools:       registry,
		conv:        conv,
		counters:    counters,
		transcriber: transcriber,
		device:      device,
		cfg:         cfg,
		sem:         make(chan struct{}, cfg.Limits.MaxInFlight),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Dispatch schedules an inbound message for asynchronous processing and
// returns immediately: the webhook response never waits for the reply.
func (p *Pipeline) Dispatch(msg *gateway.InboundMessage) {
	go func() {
		correlationID := uuid.New().String()[:8]
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorCF("bot", "Recovered from panic while processing message",
					map[string]interface{}{"correlation": correlationID, "panic": r})
			}
		}()

		p.sem <- struct{}{}
		defer func() { <-p.sem }()

		lock := p.lockFor(msg.Chat.ID)
		lock.Lock()
		defer lock.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		p.process(ctx, msg, correlationID)
	}()
}

func (p *Pipeline) lockFor(chatID string) *sync.Mutex {
	v, _ := p.chatLocks.LoadOrStore(chatID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (p *Pipeline) process(ctx context.Context, msg *gateway.InboundMessage, correlationID string) {
	if !canReply(msg, p.cfg) {
		logger.DebugCF("bot", "Skipping ineligible chat",
			map[string]interface{}{"correlation": correlationID, "chat": msg.Chat.ID})
		return
	}

	count := p.counters.Increment(msg.Chat.ID)
	if count > p.cfg.Limits.MaxMessagesPerChat {
		if count == p.cfg.Limits.MaxMessagesPerChat+1 {
			logger.WarnCF("bot", "Chat reached the daily message quota",
				map[string]interface{}{"chat": msg.Chat.ID, "count": count})
		}
		return
	}

	p.gw.PullChatMessages(ctx, msg.Chat, p.device)

	body, ok := p.resolveBody(ctx, msg, correlationID)
	if !ok {
		return
	}
	body = utils.Truncate(body, p.cfg.Limits.MaxInputChars)

	logger.InfoCF("bot", "Processing inbound message", map[string]interface{}{
		"correlation": correlationID,
		"chat":        msg.Chat.ID,
		"from":        msg.FromNumber,
	})

	if wantsHuman(body) {
		p.assignToHuman(ctx, msg, correlationID)
		return
	}

	p.gw.SendTypingState(ctx, msg.FromNumber, p.device)

	reply := p.firstContactReply(msg)
	if reply == "" {
		reply = p.generateReply(ctx, msg, body, correlationID)
	}
	if reply == "" {
		reply = p.cfg.Templates.UnknownCommand
	}

	if _, sent := p.gw.SendMessage(ctx, gateway.SendRequest{
		Phone:   msg.FromNumber,
		Message: reply,
		Device:  p.device.ID,
	}); !sent {
		logger.ErrorCF("bot", "Giving up on reply delivery",
			map[string]interface{}{"correlation": correlationID, "chat": msg.Chat.ID})
		return
	}

	p.markBotChat(ctx, msg)
}

// resolveBody returns the text to feed the model. Audio messages are
// transcribed when the feature is on; otherwise (or on failure) the contact
// gets the no-audio template and processing stops.
func (p *Pipeline) resolveBody(ctx context.Context, msg *gateway.InboundMessage, correlationID string) (string, bool) {
	isAudio := msg.Media != nil && utils.IsAudioFile(msg.Media.Filename, msg.Media.ContentType)
	if !isAudio {
		if msg.Body == "" {
			return "", false
		}
		return msg.Body, true
	}

	if p.cfg.Features.AudioInput && p.transcriber != nil {
		if text, ok := p.transcriber.Transcribe(ctx, msg, p.device); ok {
			return text, true
		}
		logger.WarnCF("bot", "Audio transcription failed, sending fallback",
			map[string]interface{}{"correlation": correlationID, "chat": msg.Chat.ID})
	}

	p.gw.SendMessage(ctx, gateway.SendRequest{
		Phone:   msg.FromNumber,
		Message: p.cfg.Templates.NoAudio,
		Device:  p.device.ID,
	})
	return "", false
}

// firstContactReply returns the welcome text when this is the first exchange
// with the contact, empty otherwise.
func (p *Pipeline) firstContactReply(msg *gateway.InboundMessage) string {
	for _, m := range p.conv.History(msg.Chat.ID) {
		if !m.Inbound() {
			return ""
		}
	}
	return p.cfg.Templates.Welcome + "\n\n" + p.cfg.Templates.Default
}

// generateReply runs the model with the tool catalog, feeding tool results
// back until the model answers in plain text or the iteration cap is hit.
func (p *Pipeline) generateReply(ctx context.Context, msg *gateway.InboundMessage, body, correlationID string) string {
	messages := p.buildContext(msg, body)
	specs := p.tools.Specs()
	opts := providers.Options{
		Temperature: p.cfg.AI.Temperature,
		MaxTokens:   p.cfg.Limits.MaxOutputTokens,
	}

	for iteration := 0; iteration < p.cfg.Limits.MaxToolIterations; iteration++ {
		resp, err := p.provider.Chat(ctx, messages, specs, p.cfg.AI.Model, opts)
		if err != nil {
			logger.ErrorCF("bot", "Reply generation failed", map[string]interface{}{
				"correlation": correlationID,
				"chat":        msg.Chat.ID,
				"error":       err.Error(),
			})
			return ""
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Content
		}

		messages = append(messages, providers.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			args := map[string]interface{}{}
			if tc.Arguments != "" {
				if err := decodeArgs(tc.Arguments, &args); err != nil {
					logger.WarnCF("bot", "Tool call has invalid arguments",
						map[string]interface{}{"tool": tc.Name, "error": err.Error()})
				}
			}
			result := p.tools.Execute(ctx, tc.Name, args)
			logger.DebugCF("bot", "Tool executed", map[string]interface{}{
				"correlation": correlationID,
				"tool":        tc.Name,
				"failed":      result.Err != nil,
			})
			messages = append(messages, providers.Message{
				Role:       "tool",
				Content:    result.ForLLM,
				ToolCallID: tc.ID,
			})
		}
	}

	logger.WarnCF("bot", "Tool iteration cap reached without a final answer",
		map[string]interface{}{"correlation": correlationID, "chat": msg.Chat.ID})
	return ""
}

// buildContext assembles the model conversation: system instructions, the
// stored chat history (oldest first, current message excluded) and finally the
// resolved inbound text.
func (p *Pipeline) buildContext(msg *gateway.InboundMessage, body string) []providers.Message {
	messages := []providers.Message{
		{Role: "system", Content: p.cfg.AI.Instructions},
	}

	for _, m := range p.conv.History(msg.Chat.ID) {
		if m.ID == msg.ID || m.Body == "" {
			continue
		}
		role := "assistant"
		if m.Inbound() {
			role = "user"
		}
		messages = append(messages, providers.Message{Role: role, Content: m.Body})
	}

	return append(messages, providers.Message{Role: "user", Content: body})
}

// assignToHuman hands the chat over to a random eligible agent, confirms to
// the contact and marks the chat so the bot stops answering it.
func (p *Pipeline) assignToHuman(ctx context.Context, msg *gateway.InboundMessage, correlationID string) {
	p.gw.SendMessage(ctx, gateway.SendRequest{
		Phone:   msg.FromNumber,
		Message: p.cfg.Templates.ChatAssigned,
		Device:  p.device.ID,
	})

	if p.cfg.Team.EnableAssignment {
		members := EligibleMembers(p.gw.PullMembers(ctx, p.device), p.cfg.Team)
		if len(members) > 0 {
			member := members[p.pick(len(members))]
			if err := p.gw.AssignChat(ctx, msg.Chat, p.device, member.ID); err == nil {
				logger.InfoCF("bot", "Chat assigned to agent", map[string]interface{}{
					"correlation": correlationID,
					"chat":        msg.Chat.ID,
					"agent":       member.ID,
				})
			}
		} else {
			logger.WarnCF("bot", "No eligible agents for chat assignment",
				map[string]interface{}{"correlation": correlationID, "chat": msg.Chat.ID})
		}
	}

	if len(p.cfg.Labels.SetOnAssignment) > 0 {
		p.gw.UpdateChatLabels(ctx, msg.Chat, p.device, missingLabels(msg.Chat.Labels, p.cfg.Labels.SetOnAssignment))
	}
	p.gw.UpdateChatMetadata(ctx, msg.Chat, p.device, []gateway.MetadataEntry{
		{Key: p.cfg.Metadata.OnAssignmentKey, Value: time.Now().Format(time.RFC3339)},
	})
}

// markBotChat labels the chat as bot-managed and stamps the start metadata.
// Applied once per chat per process lifetime.
func (p *Pipeline) markBotChat(ctx context.Context, msg *gateway.InboundMessage) {
	if _, done := p.marked.LoadOrStore(msg.Chat.ID, struct{}{}); done {
		return
	}

	if missing := missingLabels(msg.Chat.Labels, p.cfg.Labels.SetOnBotChats); len(missing) > 0 {
		p.gw.UpdateChatLabels(ctx, msg.Chat, p.device, missing)
	}
	p.gw.UpdateChatMetadata(ctx, msg.Chat, p.device, []gateway.MetadataEntry{
		{Key: p.cfg.Metadata.OnBotChatKey, Value: time.Now().Format(time.RFC3339)},
	})
}

func (p *Pipeline) pick(n int) int {
	p.rngMu.Lock()
	defer p.rngMu.Unlock()
	return p.rng.Intn(n)
}

func decodeArgs(raw string, out *map[string]interface{}) error {
	return json.Unmarshal([]byte(raw), out)
}

func missingLabels(existing, wanted []string) []string {
	var out []string
	for _, w := range wanted {
		if !hasString(existing, w) {
			out = append(out, w)
		}
	}
	return out
}

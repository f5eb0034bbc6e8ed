package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ecamargo/wabot/pkg/config"
	"github.com/ecamargo/wabot/pkg/gateway"
	"github.com/ecamargo/wabot/pkg/providers"
	"github.com/ecamargo/wabot/pkg/store"
	"github.com/ecamargo/wabot/pkg/tools"
)

type fakeGateway struct {
	sent       []gateway.SendRequest
	sendOK     bool
	members    []gateway.TeamMember
	assignedTo []string
	labels     [][]string
	metadata   [][]gateway.MetadataEntry
	pulled     []gateway.Message
	typing     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sendOK: true}
}

func (f *fakeGateway) SendMessage(ctx context.Context, req gateway.SendRequest) (*gateway.MessageRecord, bool) {
	f.sent = append(f.sent, req)
	if !f.sendOK {
		return nil, false
	}
	return &gateway.MessageRecord{ID: "out-1", Status: "queued"}, true
}

func (f *fakeGateway) PullMembers(ctx context.Context, device *gateway.Device) []gateway.TeamMember {
	return f.members
}

func (f *fakeGateway) PullChatMessages(ctx context.Context, chat gateway.Chat, device *gateway.Device) []gateway.Message {
	return f.pulled
}

func (f *fakeGateway) UpdateChatLabels(ctx context.Context, chat gateway.Chat, device *gateway.Device, labels []string) {
	f.labels = append(f.labels, labels)
}

func (f *fakeGateway) UpdateChatMetadata(ctx context.Context, chat gateway.Chat, device *gateway.Device, metadata []gateway.MetadataEntry) {
	f.metadata = append(f.metadata, metadata)
}

func (f *fakeGateway) AssignChat(ctx context.Context, chat gateway.Chat, device *gateway.Device, memberID string) error {
	f.assignedTo = append(f.assignedTo, memberID)
	return nil
}

func (f *fakeGateway) SendTypingState(ctx context.Context, chatPhone string, device *gateway.Device) {
	f.typing++
}

// scriptedProvider returns its responses in order, then errors.
type scriptedProvider struct {
	responses []*providers.Response
	calls     [][]providers.Message
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) Chat(ctx context.Context, messages []providers.Message, specs []providers.ToolSpec, model string, opts providers.Options) (*providers.Response, error) {
	s.calls = append(s.calls, messages)
	if len(s.responses) == 0 {
		return nil, errors.New("no scripted responses left")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func testPipeline(gw Gateway, provider providers.LLMProvider, cfg *config.Config) *Pipeline {
	device := &gateway.Device{ID: "dev-1", Status: "operative"}
	return NewPipeline(gw, provider, tools.DefaultRegistry(),
		store.NewConversations(cfg.Limits.ChatHistory), store.NewCounters(), nil, device, cfg)
}

func inbound(chatID, from, body string) *gateway.InboundMessage {
	return &gateway.InboundMessage{
		ID:         "msg-1",
		Flow:       "inbound",
		Body:       body,
		FromNumber: from,
		Date:       time.Now(),
		Chat:       gateway.Chat{ID: chatID},
	}
}

func TestProcessRepliesWithModelAnswer(t *testing.T) {
	gw := newFakeGateway()
	provider := &scriptedProvider{responses: []*providers.Response{
		{Content: "We offer three plans."},
	}}
	cfg := config.DefaultConfig()
	p := testPipeline(gw, provider, cfg)

	// Prior outbound history so the welcome path is not taken.
	p.conv.Merge("34611@c.us", []gateway.Message{
		{ID: "old-1", Flow: "outbound", Body: "Hello!", Date: time.Now().Add(-time.Hour)},
	})

	p.process(context.Background(), inbound("34611@c.us", "+34611", "What plans do you have?"), "test")

	if len(gw.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(gw.sent))
	}
	if gw.sent[0].Message != "We offer three plans." {
		t.Errorf("reply = %q, want model answer", gw.sent[0].Message)
	}
	if gw.typing != 1 {
		t.Errorf("typing notifications = %d, want 1", gw.typing)
	}

	// System prompt first, inbound text last.
	ctxMsgs := provider.calls[0]
	if ctxMsgs[0].Role != "system" {
		t.Errorf("first context message role = %q, want system", ctxMsgs[0].Role)
	}
	last := ctxMsgs[len(ctxMsgs)-1]
	if last.Role != "user" || last.Content != "What plans do you have?" {
		t.Errorf("last context message = %+v, want current inbound text", last)
	}
}

func TestProcessFirstContactSendsWelcome(t *testing.T) {
	gw := newFakeGateway()
	provider := &scriptedProvider{}
	cfg := config.DefaultConfig()
	p := testPipeline(gw, provider, cfg)

	p.process(context.Background(), inbound("34611@c.us", "+34611", "hello"), "test")

	if len(gw.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(gw.sent))
	}
	if gw.sent[0].Message != cfg.Templates.Welcome+"\n\n"+cfg.Templates.Default {
		t.Errorf("reply = %q, want welcome template", gw.sent[0].Message)
	}
	if len(provider.calls) != 0 {
		t.Errorf("provider called %d times on first contact, want 0", len(provider.calls))
	}
}

func TestProcessToolLoop(t *testing.T) {
	gw := newFakeGateway()
	provider := &scriptedProvider{responses: []*providers.Response{
		{ToolCalls: []providers.ToolCall{{
			ID:        "call-1",
			Name:      "verifyMeetingAvailability",
			Arguments: `{"date":"2024-03-13T10:00:00Z"}`,
		}}},
		{Content: "That slot is available, shall I book it?"},
	}}
	cfg := config.DefaultConfig()
	p := testPipeline(gw, provider, cfg)
	p.conv.Merge("34611@c.us", []gateway.Message{
		{ID: "old-1", Flow: "outbound", Body: "Hello!", Date: time.Now().Add(-time.Hour)},
	})

	p.process(context.Background(), inbound("34611@c.us", "+34611", "Can we meet Wednesday at 10?"), "test")

	if len(gw.sent) != 1 || gw.sent[0].Message != "That slot is available, shall I book it?" {
		t.Fatalf("sent = %+v, want final model answer", gw.sent)
	}
	if len(provider.calls) != 2 {
		t.Fatalf("provider called %d times, want 2", len(provider.calls))
	}

	// Second round must carry the tool result back.
	second := provider.calls[1]
	toolMsg := second[len(second)-1]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call-1" {
		t.Errorf("last message of second round = %+v, want tool result for call-1", toolMsg)
	}
	if toolMsg.Content != "Available" {
		t.Errorf("tool result content = %q, want %q", toolMsg.Content, "Available")
	}
}

func TestProcessFallsBackToUnknownCommand(t *testing.T) {
	gw := newFakeGateway()
	provider := &scriptedProvider{} // errors on first call
	cfg := config.DefaultConfig()
	p := testPipeline(gw, provider, cfg)
	p.conv.Merge("34611@c.us", []gateway.Message{
		{ID: "old-1", Flow: "outbound", Body: "Hello!", Date: time.Now().Add(-time.Hour)},
	})

	p.process(context.Background(), inbound("34611@c.us", "+34611", "hello"), "test")

	if len(gw.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(gw.sent))
	}
	if gw.sent[0].Message != cfg.Templates.UnknownCommand {
		t.Errorf("reply = %q, want unknown-command template", gw.sent[0].Message)
	}
}

func TestProcessHumanHandover(t *testing.T) {
	gw := newFakeGateway()
	gw.members = []gateway.TeamMember{
		{ID: "member-1", Status: "active", Role: "agent"},
	}
	cfg := config.DefaultConfig()
	p := testPipeline(gw, &scriptedProvider{}, cfg)

	p.process(context.Background(), inbound("34611@c.us", "+34611", " Human "), "test")

	if len(gw.sent) != 1 || gw.sent[0].Message != cfg.Templates.ChatAssigned {
		t.Fatalf("sent = %+v, want chat-assigned template", gw.sent)
	}
	if len(gw.assignedTo) != 1 || gw.assignedTo[0] != "member-1" {
		t.Errorf("assignedTo = %v, want [member-1]", gw.assignedTo)
	}
	if len(gw.metadata) != 1 || gw.metadata[0][0].Key != cfg.Metadata.OnAssignmentKey {
		t.Errorf("metadata = %+v, want assignment stamp", gw.metadata)
	}
}

func TestProcessSkipsIneligibleChat(t *testing.T) {
	gw := newFakeGateway()
	cfg := config.DefaultConfig()
	p := testPipeline(gw, &scriptedProvider{}, cfg)

	p.process(context.Background(), inbound("12345@g.us", "+34611", "hello"), "test")

	if len(gw.sent) != 0 {
		t.Errorf("sent %d messages for a group chat, want 0", len(gw.sent))
	}
}

func TestProcessEnforcesDailyQuota(t *testing.T) {
	gw := newFakeGateway()
	cfg := config.DefaultConfig()
	cfg.Limits.MaxMessagesPerChat = 1
	provider := &scriptedProvider{responses: []*providers.Response{
		{Content: "first"},
		{Content: "second"},
	}}
	p := testPipeline(gw, provider, cfg)
	p.conv.Merge("34611@c.us", []gateway.Message{
		{ID: "old-1", Flow: "outbound", Body: "Hello!", Date: time.Now().Add(-time.Hour)},
	})

	p.process(context.Background(), inbound("34611@c.us", "+34611", "one"), "test")
	p.process(context.Background(), inbound("34611@c.us", "+34611", "two"), "test")

	if len(gw.sent) != 1 {
		t.Errorf("sent %d messages, want 1 before the quota cut in", len(gw.sent))
	}
}

func TestProcessMarksBotChatOnce(t *testing.T) {
	gw := newFakeGateway()
	cfg := config.DefaultConfig()
	provider := &scriptedProvider{responses: []*providers.Response{
		{Content: "first"},
		{Content: "second"},
	}}
	p := testPipeline(gw, provider, cfg)
	p.conv.Merge("34611@c.us", []gateway.Message{
		{ID: "old-1", Flow: "outbound", Body: "Hello!", Date: time.Now().Add(-time.Hour)},
	})

	p.process(context.Background(), inbound("34611@c.us", "+34611", "one"), "test")
	p.process(context.Background(), inbound("34611@c.us", "+34611", "two"), "test")

	if len(gw.labels) != 1 {
		t.Errorf("label updates = %d, want 1", len(gw.labels))
	}
	if len(gw.metadata) != 1 || gw.metadata[0][0].Key != cfg.Metadata.OnBotChatKey {
		t.Errorf("metadata = %+v, want single bot-start stamp", gw.metadata)
	}
}

func TestProcessAudioDisabledSendsNoAudioTemplate(t *testing.T) {
	gw := newFakeGateway()
	cfg := config.DefaultConfig()
	cfg.Features.AudioInput = false
	p := testPipeline(gw, &scriptedProvider{}, cfg)

	msg := inbound("34611@c.us", "+34611", "")
	msg.Media = &gateway.Media{ID: "abc123", Filename: "voice.ogg", ContentType: "audio/ogg"}

	p.process(context.Background(), msg, "test")

	if len(gw.sent) != 1 || gw.sent[0].Message != cfg.Templates.NoAudio {
		t.Fatalf("sent = %+v, want no-audio template", gw.sent)
	}
}

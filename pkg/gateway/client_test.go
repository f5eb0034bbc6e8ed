package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]interface{})}
}

func (c *memCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *memCache) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

func (c *memCache) Fresh(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

type memSink struct {
	chats map[string][]Message
}

func (s *memSink) Merge(chatID string, msgs []Message) {
	if s.chats == nil {
		s.chats = make(map[string][]Message)
	}
	s.chats[chatID] = append(s.chats[chatID], msgs...)
}

func testDevice() *Device {
	return &Device{ID: "dev-1", Status: "operative"}
}

func TestSendMessageRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(MessageRecord{ID: "msg-1", Status: "queued"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", newMemCache(), nil)
	record, ok := c.SendMessage(context.Background(), SendRequest{Phone: "+34611", Message: "hi"})

	if !ok {
		t.Fatal("SendMessage should succeed on the third attempt")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if record.ID != "msg-1" {
		t.Errorf("record.ID = %q, want msg-1", record.ID)
	}
}

func TestSendMessageGivesUpAfterThreeAttempts(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", newMemCache(), nil)
	record, ok := c.SendMessage(context.Background(), SendRequest{Phone: "+34611", Message: "hi"})

	if ok || record != nil {
		t.Error("SendMessage should report failure after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want exactly 3", attempts)
	}
}

func TestSendMessageDefaultsEnqueueNever(t *testing.T) {
	var got SendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(MessageRecord{ID: "msg-1"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", newMemCache(), nil)
	c.SendMessage(context.Background(), SendRequest{Phone: "+34611", Message: "hi"})

	if got.Enqueue != "never" {
		t.Errorf("enqueue = %q, want never", got.Enqueue)
	}
}

func TestPullMembersUsesCache(t *testing.T) {
	fetches := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		json.NewEncoder(w).Encode([]TeamMember{{ID: "member-1", Status: "active"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", newMemCache(), nil)
	dev := testDevice()

	first := c.PullMembers(context.Background(), dev)
	second := c.PullMembers(context.Background(), dev)

	if fetches != 1 {
		t.Errorf("fetches = %d, want 1 (second read served from cache)", fetches)
	}
	if len(first) != 1 || len(second) != 1 || second[0].ID != "member-1" {
		t.Errorf("members = %+v / %+v", first, second)
	}
}

func TestCreateLabelsOnlyCreatesMissing(t *testing.T) {
	var created []Label
	listCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listCalls++
			json.NewEncoder(w).Encode([]Label{{Name: "bot"}})
		case http.MethodPost:
			var l Label
			json.NewDecoder(r.Body).Decode(&l)
			created = append(created, l)
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", newMemCache(), nil)
	c.CreateLabels(context.Background(), testDevice(), []string{"bot", "from-bot", "a-very-long-label-name-that-needs-trimming"})

	if len(created) != 2 {
		t.Fatalf("created %d labels, want 2 (bot already exists)", len(created))
	}
	if created[0].Name != "from-bot" {
		t.Errorf("created[0].Name = %q, want from-bot", created[0].Name)
	}
	if len(created[1].Name) > 30 {
		t.Errorf("label name %q not trimmed to 30 chars", created[1].Name)
	}
	for _, l := range created {
		if l.Color != "blue" || l.Description != "Chatbot label" {
			t.Errorf("label %+v missing default color/description", l)
		}
	}
	// Initial list plus the forced refresh after creation.
	if listCalls != 2 {
		t.Errorf("label list fetched %d times, want 2", listCalls)
	}
}

func TestCreateLabelsNoopWhenAllExist(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
			return
		}
		json.NewEncoder(w).Encode([]Label{{Name: "bot"}, {Name: "from-bot"}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", newMemCache(), nil)
	c.CreateLabels(context.Background(), testDevice(), []string{"bot", "from-bot"})

	if posts != 0 {
		t.Errorf("created %d labels, want 0", posts)
	}
}

func TestPullChatMessagesMergesIntoSink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "25" {
			t.Errorf("limit = %q, want 25", got)
		}
		json.NewEncoder(w).Encode([]Message{
			{ID: "m1", Flow: "inbound", Body: "hi"},
			{ID: "m2", Flow: "outbound", Body: "hello"},
		})
	}))
	defer srv.Close()

	sink := &memSink{}
	c := NewClient(srv.URL, "key", newMemCache(), sink)
	msgs := c.PullChatMessages(context.Background(), Chat{ID: "chat-1"}, testDevice())

	if len(msgs) != 2 {
		t.Fatalf("pulled %d messages, want 2", len(msgs))
	}
	if len(sink.chats["chat-1"]) != 2 {
		t.Errorf("sink got %d messages, want 2", len(sink.chats["chat-1"]))
	}
}

func TestLoadDevice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Device{
			{ID: "dev-1", Status: "disconnected"},
			{ID: "dev-2", Status: "operative"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", newMemCache(), nil)

	dev, err := c.LoadDevice(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if dev == nil || dev.ID != "dev-2" {
		t.Errorf("device = %+v, want first operative (dev-2)", dev)
	}

	dev, err = c.LoadDevice(context.Background(), "dev-1")
	if err != nil {
		t.Fatal(err)
	}
	if dev == nil || dev.ID != "dev-1" {
		t.Errorf("device = %+v, want the configured id even if not operative", dev)
	}

	dev, err = c.LoadDevice(context.Background(), "dev-9")
	if err != nil || dev != nil {
		t.Errorf("unknown id should yield nil device, got %+v, %v", dev, err)
	}
}

func TestLoadDeviceUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", newMemCache(), nil)
	_, err := c.LoadDevice(context.Background(), "")
	if err == nil || !IsUnauthorized(err) {
		t.Errorf("err = %v, want an unauthorized gateway error", err)
	}
}

func TestRegisterWebhookReusesExisting(t *testing.T) {
	posts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts++
			var hook Webhook
			json.NewDecoder(r.Body).Decode(&hook)
			hook.ID = "hook-new"
			json.NewEncoder(w).Encode(hook)
			return
		}
		json.NewEncoder(w).Encode([]Webhook{
			{ID: "hook-1", URL: "https://bot.example.com/webhook", Device: "dev-1"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", newMemCache(), nil)
	dev := testDevice()

	hook, err := c.RegisterWebhook(context.Background(), "https://bot.example.com/webhook", dev)
	if err != nil {
		t.Fatal(err)
	}
	if hook.ID != "hook-1" || posts != 0 {
		t.Errorf("hook = %+v, posts = %d; want the existing registration reused", hook, posts)
	}

	hook, err = c.RegisterWebhook(context.Background(), "https://other.example.com/webhook", dev)
	if err != nil {
		t.Fatal(err)
	}
	if hook.ID != "hook-new" || posts != 1 {
		t.Errorf("hook = %+v, posts = %d; want a fresh registration", hook, posts)
	}
	if len(hook.Events) != 1 || hook.Events[0] != EventInboundMessage {
		t.Errorf("events = %v, want only %q", hook.Events, EventInboundMessage)
	}
}

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]Device{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token", newMemCache(), nil)
	c.LoadDevice(context.Background(), "")

	if gotAuth != "secret-token" {
		t.Errorf("Authorization = %q, want the raw API key", gotAuth)
	}
}

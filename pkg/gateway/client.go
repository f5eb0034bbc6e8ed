package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ecamargo/wabot/pkg/logger"
)

const (
	requestTimeout  = 15 * time.Second
	sendMaxAttempts = 3
	// chatMessagesLimit is the provider-side page size when refreshing
	// conversation context.
	chatMessagesLimit = 25
	labelMaxNameLen   = 30
)

// CacheStore is the slice of the cache the client needs: team members and
// labels are cached under well-known keys and re-fetched when stale.
type CacheStore interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{})
	Fresh(key string) bool
}

// ConversationSink receives messages pulled from the gateway so they can be
// merged into the per-chat conversation state.
type ConversationSink interface {
	Merge(chatID string, msgs []Message)
}

const (
	cacheKeyMembers = "members"
	cacheKeyLabels  = "labels"
)

// Client wraps every outbound call to the messaging gateway. Except for
// SendMessage (bounded retry, explicit failure sentinel) and the startup
// paths, failures are logged and converted to empty results: the pipeline
// degrades instead of aborting.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	cache      CacheStore
	conv       ConversationSink
}

func NewClient(baseURL, apiKey string, cache CacheStore, conv ConversationSink) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cache:      cache,
		conv:       conv,
	}
}

// apiError carries the gateway's status code so startup can distinguish
// credential problems from transport ones.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.Status, e.Body)
}

// IsUnauthorized reports whether err is a gateway 401/403 response.
func IsUnauthorized(err error) bool {
	if e, ok := err.(*apiError); ok {
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apiError{Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// SendRequest is the outbound message body for the gateway send endpoint.
type SendRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
	Media   string `json:"media,omitempty"`
	Device  string `json:"device,omitempty"`
	Enqueue string `json:"enqueue,omitempty"`
}

// SendMessage emits a message through the gateway, retrying up to three
// attempts on any error. It returns (record, true) on the first success and
// (nil, false) once all attempts are exhausted; callers must check the
// sentinel. Duplicate delivery is possible: send semantics are at-least-once.
func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*MessageRecord, bool) {
	if req.Enqueue == "" {
		req.Enqueue = "never"
	}

	for attempt := 1; attempt <= sendMaxAttempts; attempt++ {
		var record MessageRecord
		err := c.do(ctx, http.MethodPost, "/messages", req, &record)
		if err == nil {
			logger.InfoCF("gateway", "Message sent", map[string]interface{}{
				"phone":  req.Phone,
				"id":     record.ID,
				"status": record.Status,
			})
			return &record, true
		}
		logger.ErrorCF("gateway", "Failed to send message", map[string]interface{}{
			"phone":   req.Phone,
			"attempt": attempt,
			"error":   err.Error(),
		})
	}
	return nil, false
}

// PullMembers returns the account's team members, re-fetching when the cache
// slot is missing or stale. Fetch failures are logged and yield nil.
func (c *Client) PullMembers(ctx context.Context, device *Device) []TeamMember {
	if c.cache.Fresh(cacheKeyMembers) {
		if v, ok := c.cache.Get(cacheKeyMembers); ok {
			if members, ok := v.([]TeamMember); ok {
				return members
			}
		}
	}

	var members []TeamMember
	path := fmt.Sprintf("/devices/%s/team", device.ID)
	if err := c.do(ctx, http.MethodGet, path, nil, &members); err != nil {
		logger.ErrorCF("gateway", "Failed to pull team members",
			map[string]interface{}{"device": device.ID, "error": err.Error()})
		return nil
	}
	c.cache.Set(cacheKeyMembers, members)
	return members
}

// PullLabels returns the device's labels with the same caching discipline as
// PullMembers. force bypasses the freshness check.
func (c *Client) PullLabels(ctx context.Context, device *Device, force bool) []Label {
	if !force && c.cache.Fresh(cacheKeyLabels) {
		if v, ok := c.cache.Get(cacheKeyLabels); ok {
			if labels, ok := v.([]Label); ok {
				return labels
			}
		}
	}

	var labels []Label
	path := fmt.Sprintf("/devices/%s/labels", device.ID)
	if err := c.do(ctx, http.MethodGet, path, nil, &labels); err != nil {
		logger.ErrorCF("gateway", "Failed to pull labels",
			map[string]interface{}{"device": device.ID, "error": err.Error()})
		return nil
	}
	c.cache.Set(cacheKeyLabels, labels)
	return labels
}

// CreateLabels creates every label in required that the device does not
// already have. Per-label failures are logged and do not abort the rest; if
// anything was created the labels cache is force-refreshed.
func (c *Client) CreateLabels(ctx context.Context, device *Device, required []string) {
	existing := c.PullLabels(ctx, device, false)

	var missing []string
	for _, name := range required {
		found := false
		for _, l := range existing {
			if l.Name == name {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, name)
		}
	}

	for _, name := range missing {
		logger.InfoCF("gateway", "Creating label", map[string]interface{}{"label": name})
		trimmed := name
		if len(trimmed) > labelMaxNameLen {
			trimmed = trimmed[:labelMaxNameLen]
		}
		body := Label{
			Name:        strings.TrimSpace(trimmed),
			Color:       "blue",
			Description: "Chatbot label",
		}
		path := fmt.Sprintf("/devices/%s/labels", device.ID)
		if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
			logger.ErrorCF("gateway", "Failed to create label",
				map[string]interface{}{"label": name, "error": err.Error()})
		}
	}

	if len(missing) > 0 {
		c.PullLabels(ctx, device, true)
	}
}

// UpdateChatLabels appends labels to the chat's current label list and
// patches it. The append is not idempotent: calling twice with the same
// labels can duplicate them.
func (c *Client) UpdateChatLabels(ctx context.Context, chat Chat, device *Device, labels []string) {
	newLabels := append(append([]string{}, chat.Labels...), labels...)
	logger.InfoCF("gateway", "Updating chat labels",
		map[string]interface{}{"chat": chat.ID, "labels": strings.Join(newLabels, ",")})

	path := fmt.Sprintf("/chat/%s/chats/%s/labels", device.ID, chat.ID)
	if err := c.do(ctx, http.MethodPatch, path, newLabels, nil); err != nil {
		logger.ErrorCF("gateway", "Failed to update chat labels",
			map[string]interface{}{"chat": chat.ID, "error": err.Error()})
	}
}

// UpdateChatMetadata overwrite-patches the chat contact's metadata entries.
func (c *Client) UpdateChatMetadata(ctx context.Context, chat Chat, device *Device, metadata []MetadataEntry) {
	path := fmt.Sprintf("/chat/%s/contacts/%s/metadata", device.ID, chat.ID)
	if err := c.do(ctx, http.MethodPatch, path, metadata, nil); err != nil {
		logger.ErrorCF("gateway", "Failed to update chat metadata",
			map[string]interface{}{"chat": chat.ID, "error": err.Error()})
	}
}

// AssignChat hands the chat over to a human agent.
func (c *Client) AssignChat(ctx context.Context, chat Chat, device *Device, memberID string) error {
	path := fmt.Sprintf("/chat/%s/chats/%s/owner", device.ID, chat.ID)
	body := map[string]string{"agent": memberID}
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		logger.ErrorCF("gateway", "Failed to assign chat",
			map[string]interface{}{"chat": chat.ID, "agent": memberID, "error": err.Error()})
		return err
	}
	return nil
}

// PullChatMessages fetches the chat's most recent messages (provider-side
// page of 25) and merges them into the conversation state. Failures are
// logged and yield nil.
func (c *Client) PullChatMessages(ctx context.Context, chat Chat, device *Device) []Message {
	path := fmt.Sprintf("/chat/%s/messages/?chat=%s&limit=%d",
		device.ID, url.QueryEscape(chat.ID), chatMessagesLimit)

	var msgs []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		logger.ErrorCF("gateway", "Failed to pull chat messages",
			map[string]interface{}{"chat": chat.ID, "error": err.Error()})
		return nil
	}
	if c.conv != nil {
		c.conv.Merge(chat.ID, msgs)
	}
	return msgs
}

// LoadDevice lists the account's devices and selects the configured one, or
// the first operative device when no id is configured. Unlike the rest of the
// client this returns errors: the caller terminates the process on failure.
func (c *Client) LoadDevice(ctx context.Context, deviceID string) (*Device, error) {
	var devices []Device
	if err := c.do(ctx, http.MethodGet, "/devices", nil, &devices); err != nil {
		return nil, err
	}

	for i := range devices {
		if deviceID != "" {
			if devices[i].ID == deviceID {
				return &devices[i], nil
			}
			continue
		}
		if devices[i].Status == "operative" {
			return &devices[i], nil
		}
	}
	return nil, nil
}

// SendTypingState fires a presence indicator for the chat. Failures are
// logged, never propagated.
func (c *Client) SendTypingState(ctx context.Context, chatPhone string, device *Device) {
	path := fmt.Sprintf("/chat/%s/typing", device.ID)
	body := map[string]interface{}{
		"action":   "typing",
		"duration": 10,
		"chat":     chatPhone,
	}
	if err := c.do(ctx, http.MethodPost, path, body, nil); err != nil {
		logger.DebugCF("gateway", "Failed to send typing state",
			map[string]interface{}{"chat": chatPhone, "error": err.Error()})
	}
}

// RegisterWebhook looks up an existing webhook matching url and device before
// creating one, so repeated startups do not multiply registrations.
func (c *Client) RegisterWebhook(ctx context.Context, callbackURL string, device *Device) (*Webhook, error) {
	var hooks []Webhook
	if err := c.do(ctx, http.MethodGet, "/webhooks", nil, &hooks); err != nil {
		return nil, err
	}
	for i := range hooks {
		if hooks[i].URL == callbackURL && hooks[i].Device == device.ID {
			return &hooks[i], nil
		}
	}

	body := Webhook{
		URL:    callbackURL,
		Device: device.ID,
		Events: []string{EventInboundMessage},
	}
	var created Webhook
	if err := c.do(ctx, http.MethodPost, "/webhooks", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DownloadMedia streams an attachment's binary content into w.
func (c *Client) DownloadMedia(ctx context.Context, device *Device, mediaID string, w io.Writer) error {
	path := fmt.Sprintf("/chat/%s/files/%s/download", device.ID, mediaID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &apiError{Status: resp.StatusCode, Body: "media download failed"}
	}
	_, err = io.Copy(w, resp.Body)
	return err
}

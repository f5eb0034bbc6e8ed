package gateway

import "time"

// Device is the connected WhatsApp number known to the gateway. It is loaded
// once at startup and never mutated afterwards.
type Device struct {
	ID      string `json:"id"`
	Phone   string `json:"phone"`
	Alias   string `json:"alias"`
	Status  string `json:"status"`
	Session struct {
		Status string `json:"status"`
	} `json:"session"`
	Billing struct {
		Subscription struct {
			Product string `json:"product"`
		} `json:"subscription"`
	} `json:"billing"`
}

// Operative reports whether the device can be used by the bot at all.
func (d *Device) Operative() bool {
	return d != nil && d.Status == "operative"
}

// Chat is a conversation thread as delivered inside webhook payloads.
type Chat struct {
	ID     string   `json:"id"`
	Name   string   `json:"name,omitempty"`
	Labels []string `json:"labels,omitempty"`
	Owner  struct {
		Agent string `json:"agent,omitempty"`
	} `json:"owner,omitempty"`
}

// Media references an attachment on a message.
type Media struct {
	ID          string `json:"id"`
	ContentType string `json:"contentType,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// Message is a single chat message pulled from the gateway.
type Message struct {
	ID    string    `json:"id"`
	Flow  string    `json:"flow"`
	Body  string    `json:"body"`
	From  string    `json:"from,omitempty"`
	Date  time.Time `json:"date"`
	Media *Media    `json:"media,omitempty"`
}

// Inbound reports whether the message was sent by the contact.
func (m Message) Inbound() bool {
	return m.Flow == "inbound"
}

// InboundMessage is the message body of an inbound webhook event.
type InboundMessage struct {
	ID         string    `json:"id"`
	Type       string    `json:"type,omitempty"`
	Flow       string    `json:"flow,omitempty"`
	Body       string    `json:"body"`
	FromNumber string    `json:"fromNumber"`
	FromMe     bool      `json:"fromMe,omitempty"`
	Date       time.Time `json:"date,omitempty"`
	Media      *Media    `json:"media,omitempty"`
	Chat       Chat      `json:"chat"`
}

// WebhookPayload is the JSON body delivered by the gateway webhook.
type WebhookPayload struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event"`
	Data  *InboundMessage `json:"data"`
}

// EventInboundMessage is the only webhook event the bot processes.
const EventInboundMessage = "message:in:new"

// TeamMember is a human agent on the gateway account.
type TeamMember struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
	Role        string `json:"role"`
}

func (m TeamMember) Active() bool {
	return m.Status == "active"
}

// Label is a chat tag managed through the gateway.
type Label struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// MetadataEntry is a key/value pair patched onto a chat contact.
type MetadataEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MessageRecord is the gateway's acknowledgment of a sent message.
type MessageRecord struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Phone  string `json:"phone,omitempty"`
}

// Webhook is a registered callback endpoint on the gateway.
type Webhook struct {
	ID     string   `json:"id"`
	URL    string   `json:"url"`
	Device string   `json:"device"`
	Events []string `json:"events"`
	Status string   `json:"status,omitempty"`
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Gateway   GatewayConfig   `json:"gateway"`
	AI        AIConfig        `json:"ai"`
	Server    ServerConfig    `json:"server"`
	Features  FeaturesConfig  `json:"features"`
	Templates TemplatesConfig `json:"templates"`
	Limits    LimitsConfig    `json:"limits"`
	Labels    LabelsConfig    `json:"labels"`
	Numbers   NumbersConfig   `json:"numbers"`
	Team      TeamConfig      `json:"team"`
	Metadata  MetadataConfig  `json:"metadata"`
	Logging   LoggingConfig   `json:"logging"`
}

type GatewayConfig struct {
	APIKey     string `json:"api_key" env:"WABOT_GATEWAY_API_KEY"`
	BaseURL    string `json:"base_url" env:"WABOT_GATEWAY_BASE_URL"`
	DeviceID   string `json:"device_id" env:"WABOT_GATEWAY_DEVICE_ID"`
	WebhookURL string `json:"webhook_url" env:"WABOT_WEBHOOK_URL"`
	Production bool   `json:"production" env:"WABOT_PRODUCTION"`
}

type AIConfig struct {
	OpenAIKey     string  `json:"openai_key" env:"WABOT_OPENAI_API_KEY"`
	AnthropicKey  string  `json:"anthropic_key" env:"WABOT_ANTHROPIC_API_KEY"`
	Model         string  `json:"model" env:"WABOT_AI_MODEL"`
	FallbackModel string  `json:"fallback_model" env:"WABOT_AI_FALLBACK_MODEL"`
	Temperature   float64 `json:"temperature" env:"WABOT_AI_TEMPERATURE"`
	Instructions  string  `json:"instructions" env:"WABOT_AI_INSTRUCTIONS"`
}

type ServerConfig struct {
	Host     string `json:"host" env:"WABOT_SERVER_HOST"`
	Port     int    `json:"port" env:"WABOT_SERVER_PORT"`
	TempPath string `json:"temp_path" env:"WABOT_SERVER_TEMP_PATH"`
}

type FeaturesConfig struct {
	AudioInput bool `json:"audio_input" env:"WABOT_FEATURES_AUDIO_INPUT"`
}

type TemplatesConfig struct {
	Welcome        string `json:"welcome"`
	Default        string `json:"default"`
	UnknownCommand string `json:"unknown_command"`
	NoAudio        string `json:"no_audio"`
	ChatAssigned   string `json:"chat_assigned"`
}

type LimitsConfig struct {
	MaxInputChars      int `json:"max_input_chars" env:"WABOT_LIMITS_MAX_INPUT_CHARS"`
	MaxOutputTokens    int `json:"max_output_tokens" env:"WABOT_LIMITS_MAX_OUTPUT_TOKENS"`
	ChatHistory        int `json:"chat_history" env:"WABOT_LIMITS_CHAT_HISTORY"`
	MaxMessagesPerChat int `json:"max_messages_per_chat" env:"WABOT_LIMITS_MAX_MESSAGES_PER_CHAT"`
	MaxToolIterations  int `json:"max_tool_iterations" env:"WABOT_LIMITS_MAX_TOOL_ITERATIONS"`
	MaxInFlight        int `json:"max_in_flight" env:"WABOT_LIMITS_MAX_IN_FLIGHT"`
}

type LabelsConfig struct {
	SetOnBotChats   []string `json:"set_on_bot_chats" env:"WABOT_LABELS_SET_ON_BOT_CHATS"`
	SetOnAssignment []string `json:"set_on_assignment" env:"WABOT_LABELS_SET_ON_ASSIGNMENT"`
	Skip            []string `json:"skip" env:"WABOT_LABELS_SKIP"`
}

type NumbersConfig struct {
	Whitelist []string `json:"whitelist" env:"WABOT_NUMBERS_WHITELIST"`
	Blacklist []string `json:"blacklist" env:"WABOT_NUMBERS_BLACKLIST"`
}

type TeamConfig struct {
	Whitelist        []string `json:"whitelist" env:"WABOT_TEAM_WHITELIST"`
	Blacklist        []string `json:"blacklist" env:"WABOT_TEAM_BLACKLIST"`
	EnableAssignment bool     `json:"enable_assignment" env:"WABOT_TEAM_ENABLE_ASSIGNMENT"`
	SkipRoles        []string `json:"skip_roles" env:"WABOT_TEAM_SKIP_ROLES"`
}

type MetadataConfig struct {
	OnBotChatKey    string `json:"on_bot_chat_key" env:"WABOT_METADATA_ON_BOT_CHAT_KEY"`
	OnAssignmentKey string `json:"on_assignment_key" env:"WABOT_METADATA_ON_ASSIGNMENT_KEY"`
}

type LoggingConfig struct {
	Level       string `json:"level" env:"WABOT_LOGGING_LEVEL"`
	FileEnabled bool   `json:"file_enabled" env:"WABOT_LOGGING_FILE_ENABLED"`
	FilePath    string `json:"file_path" env:"WABOT_LOGGING_FILE_PATH"`
}

const defaultInstructions = `You are a smart virtual customer support assistant.
You will be chatting with customers who may contact you with general queries about the product.
Be polite. Be helpful. Be concise.
If you can't help, ask the user to type *human* in order to talk with customer support.`

const defaultMessage = `Try asking anything to the AI chatbot using natural language!

Type *human* to talk with a person. Give it a try!`

const unknownCommandMessage = `I'm sorry, I was unable to understand your message. Can you please elaborate more?

If you would like to chat with a human, just reply with *human*.`

func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL: "https://api.wassenger.com/v1",
		},
		AI: AIConfig{
			Model:         "gpt-4o",
			FallbackModel: "claude-sonnet-4-5",
			Temperature:   0.2,
			Instructions:  defaultInstructions,
		},
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     3000,
			TempPath: ".tmp",
		},
		Features: FeaturesConfig{
			AudioInput: true,
		},
		Templates: TemplatesConfig{
			Welcome:        "Hey there! Welcome to this AI-powered WhatsApp chatbot. I can also speak many languages!",
			Default:        defaultMessage,
			UnknownCommand: unknownCommandMessage,
			NoAudio:        "Audio messages are not supported: please send text messages only.",
			ChatAssigned:   "You will be contacted shortly by someone from our team. Thank you for your patience.",
		},
		Limits: LimitsConfig{
			MaxInputChars:      1000,
			MaxOutputTokens:    1000,
			ChatHistory:        20,
			MaxMessagesPerChat: 500,
			MaxToolIterations:  3,
			MaxInFlight:        10,
		},
		Labels: LabelsConfig{
			SetOnBotChats:   []string{"bot"},
			SetOnAssignment: []string{"from-bot"},
			Skip:            []string{"no-bot"},
		},
		Numbers: NumbersConfig{
			Whitelist: []string{},
			Blacklist: []string{},
		},
		Team: TeamConfig{
			Whitelist:        []string{},
			Blacklist:        []string{},
			EnableAssignment: true,
			SkipRoles:        []string{"admin"},
		},
		Metadata: MetadataConfig{
			OnBotChatKey:    "bot_start",
			OnAssignmentKey: "bot_stop",
		},
		Logging: LoggingConfig{
			Level:       "INFO",
			FileEnabled: false,
			FilePath:    "wabot.log",
		},
	}
}

// LoadConfig reads an optional JSON config file and applies environment
// overrides on top of the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks credential shape. Anything failing here is fatal at startup.
func (c *Config) Validate() error {
	if len(strings.TrimSpace(c.Gateway.APIKey)) < 60 {
		return fmt.Errorf("missing or invalid gateway API key: set WABOT_GATEWAY_API_KEY")
	}
	if len(strings.TrimSpace(c.AI.OpenAIKey)) < 45 {
		return fmt.Errorf("missing or invalid OpenAI API key: set WABOT_OPENAI_API_KEY")
	}
	if c.Limits.ChatHistory <= 0 {
		return fmt.Errorf("limits.chat_history must be positive")
	}
	if c.Limits.MaxInFlight <= 0 {
		return fmt.Errorf("limits.max_in_flight must be positive")
	}
	return nil
}

// RequiredLabels returns every label name the bot may apply to a chat.
func (c *Config) RequiredLabels() []string {
	out := make([]string, 0, len(c.Labels.SetOnAssignment)+len(c.Labels.SetOnBotChats))
	out = append(out, c.Labels.SetOnAssignment...)
	return append(out, c.Labels.SetOnBotChats...)
}

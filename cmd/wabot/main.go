package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ecamargo/wabot/pkg/bot"
	"github.com/ecamargo/wabot/pkg/config"
	"github.com/ecamargo/wabot/pkg/gateway"
	"github.com/ecamargo/wabot/pkg/logger"
	"github.com/ecamargo/wabot/pkg/providers"
	"github.com/ecamargo/wabot/pkg/server"
	"github.com/ecamargo/wabot/pkg/store"
	"github.com/ecamargo/wabot/pkg/tools"
	"github.com/ecamargo/wabot/pkg/voice"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	flag.Parse()

	// Missing .env is fine, variables may come from the environment.
	godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.FileEnabled {
		if err := logger.EnableFileLogging(cfg.Logging.FilePath); err != nil {
			logger.WarnCF("main", "File logging disabled", map[string]interface{}{"error": err.Error()})
		}
	}

	if err := cfg.Validate(); err != nil {
		logger.FatalC("main", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := store.NewCache(store.DefaultTTL)
	conversations := store.NewConversations(cfg.Limits.ChatHistory)
	counters := store.NewCounters()
	client := gateway.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cache, conversations)

	device := loadDevice(ctx, client, cfg)

	if err := os.MkdirAll(cfg.Server.TempPath, 0o755); err != nil {
		logger.FatalCF("main", "Failed to create temp directory",
			map[string]interface{}{"dir": cfg.Server.TempPath, "error": err.Error()})
	}

	prepareAccount(ctx, client, device, cfg)

	provider := buildProvider(cfg)
	transcriber := voice.NewTranscriber(cfg.AI.OpenAIKey, client, cfg.Server.TempPath)
	registry := tools.DefaultRegistry()

	pipeline := bot.NewPipeline(client, provider, registry, conversations, counters, transcriber, device, cfg)

	registerWebhook(ctx, client, device, cfg)

	janitor := store.NewJanitor(cache, counters)
	go janitor.Run(ctx)

	srv := server.New(pipeline, client, device, cfg)
	logger.InfoCF("main", "Bot ready", map[string]interface{}{
		"device": device.ID,
		"phone":  device.Phone,
		"model":  cfg.AI.Model,
	})
	if err := srv.Run(ctx); err != nil {
		logger.FatalCF("main", "Server terminated", map[string]interface{}{"error": err.Error()})
	}
	logger.InfoC("main", "Shutdown complete")
}

// loadDevice resolves the WhatsApp number the bot will operate and verifies it
// is usable. Every failure here is fatal: without an operative device and an
// online session there is nothing to serve.
func loadDevice(ctx context.Context, client *gateway.Client, cfg *config.Config) *gateway.Device {
	device, err := client.LoadDevice(ctx, cfg.Gateway.DeviceID)
	if err != nil {
		if gateway.IsUnauthorized(err) {
			logger.FatalC("main", "Gateway rejected the API key: check WABOT_GATEWAY_API_KEY")
		}
		logger.FatalCF("main", "Failed to load devices", map[string]interface{}{"error": err.Error()})
	}
	if device == nil {
		logger.FatalC("main", "No operative WhatsApp device found on the account")
	}
	if !device.Operative() {
		logger.FatalCF("main", "Device is not operative",
			map[string]interface{}{"device": device.ID, "status": device.Status})
	}
	if device.Session.Status != "online" {
		logger.FatalCF("main", "WhatsApp session is not online: scan the QR code again",
			map[string]interface{}{"device": device.ID, "session": device.Session.Status})
	}
	if device.Billing.Subscription.Product != "io" {
		logger.FatalCF("main", "Device plan does not include API messaging",
			map[string]interface{}{"device": device.ID, "product": device.Billing.Subscription.Product})
	}
	return device
}

// prepareAccount warms the caches, creates the bot labels and validates the
// configured team member ids before any message is processed.
func prepareAccount(ctx context.Context, client *gateway.Client, device *gateway.Device, cfg *config.Config) {
	members := client.PullMembers(ctx, device)
	client.CreateLabels(ctx, device, cfg.RequiredLabels())

	validateTeamIDs := func(ids []string, name string) {
		for _, id := range ids {
			if len(id) != 24 {
				logger.FatalCF("main", "Invalid team member id",
					map[string]interface{}{"list": name, "id": id})
			}
			found := false
			for _, m := range members {
				if m.ID == id {
					found = true
					break
				}
			}
			if !found {
				logger.FatalCF("main", "Team member id not found on the account",
					map[string]interface{}{"list": name, "id": id})
			}
		}
	}
	validateTeamIDs(cfg.Team.Whitelist, "team.whitelist")
	validateTeamIDs(cfg.Team.Blacklist, "team.blacklist")
}

// buildProvider wires the primary model provider, with an Anthropic fallback
// when a key for it is configured.
func buildProvider(cfg *config.Config) providers.LLMProvider {
	var primary providers.LLMProvider = providers.NewOpenAIProvider(cfg.AI.OpenAIKey)
	if cfg.AI.AnthropicKey == "" {
		return primary
	}
	secondary := providers.NewAnthropicProvider(cfg.AI.AnthropicKey)
	return providers.NewFallback(primary, secondary, cfg.AI.FallbackModel)
}

// registerWebhook points the gateway at this process. In production a missing
// or failing registration is fatal; in development the bot keeps running so it
// can be driven through a tunnel or the local endpoints.
func registerWebhook(ctx context.Context, client *gateway.Client, device *gateway.Device, cfg *config.Config) {
	if cfg.Gateway.WebhookURL == "" {
		if cfg.Gateway.Production {
			logger.FatalC("main", "Missing webhook URL: set WABOT_WEBHOOK_URL")
		}
		logger.WarnC("main", "No webhook URL configured: inbound messages will not be delivered")
		return
	}

	hook, err := client.RegisterWebhook(ctx, cfg.Gateway.WebhookURL+"/webhook", device)
	if err != nil {
		if cfg.Gateway.Production {
			logger.FatalCF("main", "Failed to register webhook",
				map[string]interface{}{"url": cfg.Gateway.WebhookURL, "error": err.Error()})
		}
		logger.WarnCF("main", "Failed to register webhook",
			map[string]interface{}{"url": cfg.Gateway.WebhookURL, "error": err.Error()})
		return
	}
	logger.InfoCF("main", "Webhook registered", map[string]interface{}{"id": hook.ID, "url": hook.URL})
}

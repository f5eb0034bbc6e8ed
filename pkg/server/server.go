package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ecamargo/wabot/pkg/config"
	"github.com/ecamargo/wabot/pkg/gateway"
	"github.com/ecamargo/wabot/pkg/logger"
)

// mediaIDPattern matches gateway media ids in either hex case; anything else
// on the files endpoint is rejected before touching the filesystem.
var mediaIDPattern = regexp.MustCompile(`(?i)^[a-f0-9]{15,18}$`)

// Dispatcher schedules an accepted inbound message for async processing.
type Dispatcher interface {
	Dispatch(msg *gateway.InboundMessage)
}

// Sender sends an outbound message through the gateway.
type Sender interface {
	SendMessage(ctx context.Context, req gateway.SendRequest) (*gateway.MessageRecord, bool)
}

// Server exposes the webhook endpoint plus a few local testing routes.
type Server struct {
	engine     *gin.Engine
	dispatcher Dispatcher
	sender     Sender
	device     *gateway.Device
	cfg        *config.Config
	httpServer *http.Server
}

func New(dispatcher Dispatcher, sender Sender, device *gateway.Device, cfg *config.Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine:     engine,
		dispatcher: dispatcher,
		sender:     sender,
		device:     device,
		cfg:        cfg,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.POST("/webhook", s.handleWebhook)
	s.engine.POST("/message", s.handleSendMessage)
	s.engine.GET("/sample", s.handleSample)
	s.engine.GET("/files/:id", s.handleFile)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.DebugCF("server", "Request handled", map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		})
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoCF("server", "HTTP server listening", map[string]interface{}{"addr": addr})
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":   "wabot",
		"status": "running",
		"device": s.device.ID,
	})
}

// handleWebhook validates the gateway callback and acknowledges immediately:
// accepted messages are dispatched asynchronously, everything else is a 202 so
// the gateway does not retry deliveries the bot chose to ignore.
func (s *Server) handleWebhook(c *gin.Context) {
	var payload gateway.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if payload.Event == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event type"})
		return
	}
	if payload.Event != gateway.EventInboundMessage {
		c.JSON(http.StatusAccepted, gin.H{"ignored": true})
		return
	}
	if payload.Data == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event data"})
		return
	}
	msg := payload.Data
	if msg.FromMe || (msg.Flow != "" && msg.Flow != "inbound") {
		c.JSON(http.StatusAccepted, gin.H{"ignored": true})
		return
	}
	if msg.FromNumber == "" || msg.Chat.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing message fields"})
		return
	}

	s.dispatcher.Dispatch(msg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type sendMessageRequest struct {
	Phone   string `json:"phone" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// handleSendMessage sends an arbitrary message through the gateway. Local
// testing aid, not part of the webhook flow.
func (s *Server) handleSendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, ok := s.sender.SendMessage(c.Request.Context(), gateway.SendRequest{
		Phone:   req.Phone,
		Message: req.Message,
		Device:  s.device.ID,
	})
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message delivery failed"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleSample sends the default template to the device's own number.
func (s *Server) handleSample(c *gin.Context) {
	phone := c.Query("phone")
	if phone == "" {
		phone = s.device.Phone
	}

	record, ok := s.sender.SendMessage(c.Request.Context(), gateway.SendRequest{
		Phone:   phone,
		Message: s.cfg.Templates.Default,
		Device:  s.device.ID,
	})
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "message delivery failed"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// handleFile serves a spooled audio file exactly once: the file is removed
// after the response is written.
func (s *Server) handleFile(c *gin.Context) {
	id := c.Param("id")
	if !mediaIDPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return
	}

	path := filepath.Join(s.cfg.Server.TempPath, id+".mp3")
	data, err := os.ReadFile(path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	if err := os.Remove(path); err != nil {
		logger.WarnCF("server", "Failed to remove served file",
			map[string]interface{}{"path": path, "error": err.Error()})
	}
	c.Data(http.StatusOK, "audio/mpeg", data)
}

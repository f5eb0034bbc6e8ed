package voice

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/ecamargo/wabot/pkg/gateway"
	"github.com/ecamargo/wabot/pkg/logger"
	"github.com/ecamargo/wabot/pkg/utils"
)

// MediaDownloader fetches an attachment's binary content from the gateway.
type MediaDownloader interface {
	DownloadMedia(ctx context.Context, device *gateway.Device, mediaID string, w io.Writer) error
}

// Transcriber converts inbound voice messages to text. Audio is spooled to a
// temp file because the transcription API wants a named file upload; the file
// is removed before returning on every path.
type Transcriber struct {
	client     openai.Client
	downloader MediaDownloader
	tempDir    string
	model      openai.AudioModel
}

func NewTranscriber(apiKey string, downloader MediaDownloader, tempDir string) *Transcriber {
	return &Transcriber{
		client:     openai.NewClient(option.WithAPIKey(apiKey)),
		downloader: downloader,
		tempDir:    tempDir,
		model:      openai.AudioModelWhisper1,
	}
}

// Transcribe downloads the message's audio attachment and returns its
// transcription. The boolean is false on any failure; failures are logged and
// the caller falls back to a canned response.
func (t *Transcriber) Transcribe(ctx context.Context, msg *gateway.InboundMessage, device *gateway.Device) (string, bool) {
	if msg.Media == nil || msg.Media.ID == "" {
		return "", false
	}

	if err := os.MkdirAll(t.tempDir, 0o755); err != nil {
		logger.ErrorCF("voice", "Failed to create temp directory",
			map[string]interface{}{"dir": t.tempDir, "error": err.Error()})
		return "", false
	}

	localPath := filepath.Join(t.tempDir, utils.SanitizeFilename(msg.Media.ID)+".mp3")
	file, err := os.Create(localPath)
	if err != nil {
		logger.ErrorCF("voice", "Failed to create temp audio file",
			map[string]interface{}{"path": localPath, "error": err.Error()})
		return "", false
	}
	defer os.Remove(localPath)

	if err := t.downloader.DownloadMedia(ctx, device, msg.Media.ID, file); err != nil {
		file.Close()
		logger.ErrorCF("voice", "Failed to download audio media",
			map[string]interface{}{"media": msg.Media.ID, "error": err.Error()})
		return "", false
	}
	if err := file.Close(); err != nil {
		logger.ErrorCF("voice", "Failed to flush temp audio file",
			map[string]interface{}{"path": localPath, "error": err.Error()})
		return "", false
	}

	audio, err := os.Open(localPath)
	if err != nil {
		logger.ErrorCF("voice", "Failed to reopen temp audio file",
			map[string]interface{}{"path": localPath, "error": err.Error()})
		return "", false
	}
	defer audio.Close()

	transcription, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: t.model,
		File:  audio,
	})
	if err != nil {
		logger.ErrorCF("voice", "Transcription request failed",
			map[string]interface{}{"media": msg.Media.ID, "error": err.Error()})
		return "", false
	}
	if transcription == nil || transcription.Text == "" {
		logger.WarnCF("voice", "Transcription returned no text",
			map[string]interface{}{"media": msg.Media.ID})
		return "", false
	}

	logger.InfoCF("voice", "Audio message transcribed", map[string]interface{}{
		"media": msg.Media.ID,
		"chars": len(transcription.Text),
	})
	return transcription.Text, true
}

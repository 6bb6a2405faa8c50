package dispatch

import (
	"context"

	"tunevault/logger"
)

// LogSender is a stand-in Sender that only logs. It keeps the engine
// runnable while no chat platform client is configured.
type LogSender struct{}

func (LogSender) SendAudio(ctx context.Context, target string, localPath, title string) error {
	logger.Info("sender: audio",
		logger.String("target", target),
		logger.String("path", localPath),
		logger.String("title", title))
	return nil
}

func (LogSender) SendVideo(ctx context.Context, target string, localPath, caption string) error {
	logger.Info("sender: video",
		logger.String("target", target),
		logger.String("path", localPath),
		logger.String("caption", caption))
	return nil
}

package engine

import "tunevault/logger"

// LogMessenger is a stand-in Messenger that routes notices to the log.
type LogMessenger struct{}

func (LogMessenger) Notify(target string, text string) {
	logger.Info("notice",
		logger.String("target", target),
		logger.String("text", text))
}

package session

import "tunevault/logger"

// LogStreamer is a stand-in Streamer that only logs the calls it would
// make. It keeps the engine runnable while no group-call client is
// configured.
// TODO: replace with a real group-call client binding once one is chosen.
type LogStreamer struct{}

func (LogStreamer) JoinAndPlay(sessionID string, localPath string) error {
	logger.Info("streamer: join and play",
		logger.String("sessionId", sessionID),
		logger.String("path", localPath))
	return nil
}

func (LogStreamer) Leave(sessionID string) error {
	logger.Info("streamer: leave", logger.String("sessionId", sessionID))
	return nil
}

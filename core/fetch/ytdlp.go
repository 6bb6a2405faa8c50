package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tunevault/logger"
	"tunevault/model"
)

// DownloadResult is the download provider's outcome: a local file plus
// the canonical metadata the provider extracted.
type DownloadResult struct {
	LocalPath string
	AssetID   string
	Title     string
}

// Downloader is the external download/transcode collaborator. A call is
// synchronous and may take seconds to minutes; it performs its own retry
// budget internally.
type Downloader interface {
	Download(ctx context.Context, sourceURL string, variant model.Variant, outDir string) (*DownloadResult, error)
}

// YtDlpDownloader drives the yt-dlp binary, with ffmpeg doing the audio
// extraction, the way the rest of the system shells out to ffmpeg.
type YtDlpDownloader struct {
	ytDlpPath    string
	ffmpegPath   string
	audioBitrate string
	retries      int
}

// NewYtDlpDownloader creates a downloader. Paths fall back to binaries on
// PATH when empty.
func NewYtDlpDownloader(ytDlpPath, ffmpegPath, audioBitrate string) *YtDlpDownloader {
	if ytDlpPath == "" {
		ytDlpPath = "yt-dlp"
	}
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if audioBitrate == "" {
		audioBitrate = "192k"
	}
	return &YtDlpDownloader{
		ytDlpPath:    ytDlpPath,
		ffmpegPath:   ffmpegPath,
		audioBitrate: audioBitrate,
		retries:      3,
	}
}

type ytDlpInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Ext   string `json:"ext"`
}

// Download fetches sourceURL into outDir and returns the artifact path.
// Audio is extracted to mp3 at the configured bitrate, video kept as the
// best mp4 the source offers.
func (d *YtDlpDownloader) Download(ctx context.Context, sourceURL string, variant model.Variant, outDir string) (*DownloadResult, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", outDir, err)
	}

	args := []string{
		"--no-playlist",
		"--quiet",
		"--no-warnings",
		"--retries", fmt.Sprintf("%d", d.retries),
		"--ffmpeg-location", d.ffmpegPath,
		"--print-json",
		"-o", filepath.Join(outDir, "%(id)s.%(ext)s"),
	}

	switch variant {
	case model.VariantAudio:
		args = append(args,
			"-f", "bestaudio/best",
			"--extract-audio",
			"--audio-format", "mp3",
			"--audio-quality", strings.TrimSuffix(d.audioBitrate, "k"),
		)
	case model.VariantVideo:
		args = append(args, "-f", "best[ext=mp4]/best")
	default:
		return nil, fmt.Errorf("unknown variant %q", variant)
	}
	args = append(args, sourceURL)

	cmd := exec.CommandContext(ctx, d.ytDlpPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Info("starting download",
		logger.String("url", sourceURL),
		logger.String("variant", string(variant)))

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	var info ytDlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("yt-dlp returned no asset id")
	}

	path := filepath.Join(outDir, info.ID+info.ArtifactExt(variant))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("downloaded artifact missing at %s: %w", path, err)
	}

	return &DownloadResult{
		LocalPath: path,
		AssetID:   info.ID,
		Title:     info.Title,
	}, nil
}

// ArtifactExt is the on-disk extension of the finished artifact. Audio is
// always renamed to .mp3 by the extract-audio postprocessor; video keeps
// the container the source offered.
func (i ytDlpInfo) ArtifactExt(variant model.Variant) string {
	if variant == model.VariantAudio {
		return ".mp3"
	}
	if i.Ext != "" {
		return "." + i.Ext
	}
	return ".mp4"
}

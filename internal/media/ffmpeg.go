package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// AudioExtractor turns a video file into an audio file the transcribers
// accept.
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath string) (string, error)
}

// FFmpeg writes a sibling .mp3 next to the video and reuses it when present.
type FFmpeg struct {
	Bin string
}

func (f FFmpeg) Extract(ctx context.Context, videoPath string) (string, error) {
	out := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".mp3"
	if fi, err := os.Stat(out); err == nil && fi.Size() > 0 {
		return out, nil
	}
	bin := f.Bin
	if bin == "" {
		bin = "ffmpeg"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", videoPath,
		"-vn", "-ac", "1", "-ar", "16000", "-codec:a", "libmp3lame", "-q:a", "4",
		out,
	)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = os.Remove(out)
		return "", fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

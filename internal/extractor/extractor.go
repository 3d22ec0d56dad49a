package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/bdougie/audioscribe/internal/describer"
	"github.com/bdougie/audioscribe/internal/models"
)

// videoExtensions are the clip formats we pull a still from
var videoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".m4v":  true,
	".avi":  true,
	".mkv":  true,
	".webm": true,
}

// IsVideo reports whether the file name looks like a video clip
func IsVideo(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// ExtractFrame grabs one JPEG still from videoPath at offset `at` and
// returns its path inside outputDir.
func ExtractFrame(ctx context.Context, videoPath, outputDir string, at time.Duration) (string, error) {
	// Check if video file exists
	if _, err := os.Stat(videoPath); os.IsNotExist(err) {
		return "", fmt.Errorf("video file does not exist at path: '%s'", videoPath)
	}

	// Create output directory if it doesn't exist
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory '%s': %v", outputDir, err)
	}

	videoName := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	framePath := filepath.Join(outputDir, fmt.Sprintf("%s_%06d.jpg", videoName, at.Milliseconds()))

	ffmpegCommand := exec.CommandContext(ctx,
		"ffmpeg",
		"-y",
		"-ss", fmt.Sprintf("%.3f", at.Seconds()),
		"-i", videoPath,
		"-frames:v", "1",
		"-q:v", "2",
		framePath,
	)

	// Capture output for better error reporting
	output, err := ffmpegCommand.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg failed: %v\nOutput: %s", err, string(output))
	}

	if info, err := os.Stat(framePath); err != nil || info.Size() == 0 {
		return "", fmt.Errorf("ffmpeg produced no frame at %s for '%s'", at, videoPath)
	}
	return framePath, nil
}

// Loader turns selected paths into uploads, pulling a still out of videos
type Loader struct {
	FrameAt time.Duration
	WorkDir string // parent of per-load frame directories, os.TempDir when empty
}

// frameDir makes a private directory for one extraction, so loads of the
// same clip never share a frame file
func (l *Loader) frameDir() (string, error) {
	if l.WorkDir != "" {
		if err := os.MkdirAll(l.WorkDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create work directory '%s': %w", l.WorkDir, err)
		}
	}
	dir, err := os.MkdirTemp(l.WorkDir, "audioscribe-frame-*")
	if err != nil {
		return "", fmt.Errorf("failed to create frame directory: %w", err)
	}
	return dir, nil
}

// Load reads path into an upload. Video clips are replaced by one frame.
func (l *Loader) Load(ctx context.Context, path string) (*models.ImageFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory", path)
	}

	source := path
	if IsVideo(path) {
		dir, err := l.frameDir()
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(dir)

		source, err = ExtractFrame(ctx, path, dir, l.FrameAt)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read '%s': %w", source, err)
	}

	return &models.ImageFile{
		Name:        filepath.Base(source),
		ContentType: describer.ContentType(source, data),
		Data:        data,
	}, nil
}

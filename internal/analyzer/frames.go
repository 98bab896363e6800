package analyzer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
)

// FrameExtractor samples still frames from a media reference for content
// analysis.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, mediaRef string, count int) ([][]byte, error)
}

// FFmpegExtractor samples frames with an ffmpeg invocation and downscales
// them before upload so request payloads stay small.
type FFmpegExtractor struct {
	binary    string
	maxWidth  int
	maxHeight int
}

// NewFFmpegExtractor creates an extractor using the given ffmpeg binary
// path. An empty path means "ffmpeg" from PATH.
func NewFFmpegExtractor(binary string) *FFmpegExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegExtractor{
		binary:    binary,
		maxWidth:  768,
		maxHeight: 768,
	}
}

// ExtractFrames implements FrameExtractor. Frames are sampled one per
// second up to count, which is enough spread for short scene assets.
func (e *FFmpegExtractor) ExtractFrames(ctx context.Context, mediaRef string, count int) ([][]byte, error) {
	if count <= 0 {
		return nil, nil
	}

	dir, err := os.MkdirTemp("", "scene-frames-")
	if err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pattern := filepath.Join(dir, "frame-%03d.jpg")
	cmd := exec.CommandContext(ctx, e.binary,
		"-v", "error",
		"-y",
		"-i", mediaRef,
		"-vf", "fps=1",
		"-frames:v", fmt.Sprintf("%d", count),
		"-f", "image2",
		pattern,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction: %v: %s", err, bytes.TrimSpace(out))
	}

	paths, err := filepath.Glob(filepath.Join(dir, "frame-*.jpg"))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(paths)

	var frames [][]byte
	for _, path := range paths {
		frame, err := e.downscale(path)
		if err != nil {
			return nil, fmt.Errorf("downscale %s: %w", filepath.Base(path), err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (e *FFmpegExtractor) downscale(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	small := imaging.Fit(img, e.maxWidth, e.maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, small, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

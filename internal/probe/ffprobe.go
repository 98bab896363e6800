package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tendant/scene-validator/pkg/validation"
)

// FFProbe measures media with a single ffprobe JSON call. The media
// reference is handed to ffprobe as-is, so local paths and URLs both work.
type FFProbe struct {
	binary string
}

// NewFFProbe creates a prober using the given ffprobe binary path.
// An empty path means "ffprobe" from PATH.
func NewFFProbe(binary string) *FFProbe {
	if binary == "" {
		binary = "ffprobe"
	}
	return &FFProbe{binary: binary}
}

// Probe implements Prober. Unreadable media yields a probe-failed result,
// never an error.
func (f *FFProbe) Probe(ctx context.Context, mediaRef string) (*TechnicalResult, error) {
	if mediaRef == "" {
		return nil, fmt.Errorf("empty media reference")
	}

	cmd := exec.CommandContext(ctx, f.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		mediaRef,
	)

	out, err := cmd.Output()
	if err != nil {
		log.Printf("ffprobe failed for %s: %v", mediaRef, err)
		return Failed(fmt.Sprintf("ffprobe: %v", err)), nil
	}

	return ParseJSON(out), nil
}

// ParseJSON converts raw ffprobe JSON output into a TechnicalResult.
// Exported so tests can run against captured output without an ffprobe
// binary.
func ParseJSON(data []byte) *TechnicalResult {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return Failed(fmt.Sprintf("parse ffprobe JSON: %v", err))
	}
	return buildResult(&raw)
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeStream struct {
	CodecType    string         `json:"codec_type"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	ColorSpace   string         `json:"color_space"`
	AvgFrameRate string         `json:"avg_frame_rate"`
	Channels     int            `json:"channels"`
	SampleRate   string         `json:"sample_rate"`
	Disposition  map[string]int `json:"disposition"`
}

func buildResult(raw *ffprobeOutput) *TechnicalResult {
	var video *ffprobeStream
	var audio *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			// Cover art streams are not the primary picture.
			if video == nil && s.Disposition["attached_pic"] != 1 {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}

	if video == nil {
		return Failed("no video stream found")
	}

	res := &TechnicalResult{
		Width:           video.Width,
		Height:          video.Height,
		Resolution:      fmt.Sprintf("%dx%d", video.Width, video.Height),
		Framerate:       parseFrameRate(video.AvgFrameRate),
		ColorSpace:      video.ColorSpace,
		DurationSeconds: parseFloat(raw.Format.Duration),
		Status:          validation.SourceOK,
	}
	if audio != nil {
		res.AudioChannels = audio.Channels
		res.AudioSampleRate = parseInt(audio.SampleRate)
	}
	return res
}

// parseFrameRate handles ffprobe's fractional notation ("30000/1001").
func parseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "0/0" {
		return 0
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n := parseFloat(num)
		d := parseFloat(den)
		if d == 0 {
			return 0
		}
		return n / d
	}
	return parseFloat(s)
}

// ffprobe returns numbers as strings in several places.

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

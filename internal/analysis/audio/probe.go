// Package audio inspects uploaded recordings and converts them into the
// mono PCM WAV the transcription backends expect.
package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"meetscribe/internal/runtime"
)

// ErrEmptyFile is returned for zero-byte inputs.
var ErrEmptyFile = errors.New("file is empty")

// Info is the outcome of a format check.
// Issue is set when the file looks unusable as-is; conversion may still fix it.
type Info struct {
	MIME       string
	Size       int64
	Duration   float64
	SampleRate int
	Channels   int
	Issue      string
}

// Message renders the status line shown to pollers after the format check.
func (i Info) Message() string {
	if i.Issue != "" {
		return "Audio needs conversion: " + i.Issue
	}
	return fmt.Sprintf("Audio file: %.2fs, %dHz, %d channel(s)", i.Duration, i.SampleRate, i.Channels)
}

// Prober runs the format check. It never fails a job: every problem is reported through Info.Issue.
type Prober struct {
	rt      runtime.Runtime
	ffprobe string
}

// NewProber creates a Prober that runs ffprobePath through rt.
func NewProber(rt runtime.Runtime, ffprobePath string) *Prober {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Prober{rt: rt, ffprobe: ffprobePath}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects the file at path.
func (p *Prober) Probe(ctx context.Context, path string) Info {
	var info Info

	st, err := os.Stat(path)
	if err != nil {
		info.Issue = fmt.Sprintf("file not readable: %v", err)
		return info
	}
	info.Size = st.Size()
	if info.Size == 0 {
		info.Issue = "file is empty (0 bytes)"
		return info
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		info.Issue = fmt.Sprintf("could not detect file type: %v", err)
		return info
	}
	info.MIME = mtype.String()
	if !isMediaMIME(mtype) {
		info.Issue = fmt.Sprintf("MIME type '%s' does not appear to be audio or video", info.MIME)
		return info
	}

	res, err := runtime.Run(ctx, p.rt, runtime.StartOptions{
		Command: []string{p.ffprobe, "-v", "error", "-print_format", "json", "-show_streams", "-show_format", path},
	})
	if err != nil {
		info.Issue = fmt.Sprintf("ffprobe failed: %v", err)
		return info
	}
	if res.ExitCode != 0 {
		info.Issue = fmt.Sprintf("ffprobe exited with code %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
		return info
	}

	var out ffprobeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		info.Issue = fmt.Sprintf("unreadable ffprobe output: %v", err)
		return info
	}

	found := false
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		found = true
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		info.Channels = s.Channels
		break
	}
	if !found {
		info.Issue = "no audio stream found"
		return info
	}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	return info
}

// Containers that mimetype reports under application/.
var mediaContainers = []string{"application/ogg", "application/vnd.ms-asf"}

func isMediaMIME(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		s := m.String()
		if strings.HasPrefix(s, "audio/") || strings.HasPrefix(s, "video/") {
			return true
		}
		if mimetype.EqualsAny(s, mediaContainers...) {
			return true
		}
	}
	return false
}

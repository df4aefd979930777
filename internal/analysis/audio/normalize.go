package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"meetscribe/internal/fallback"
	"meetscribe/internal/runtime"
)

// ErrConversion wraps every normalization failure that is not a missing dependency.
var ErrConversion = errors.New("audio conversion failed")

// DefaultSampleRate is the rate transcription backends expect.
const DefaultSampleRate = 16000

// Strategy is one way of converting a recording to mono PCM WAV.
type Strategy interface {
	fallback.Strategy
	Convert(ctx context.Context, in, out string) error
}

// Normalizer converts recordings through an ordered list of strategies.
type Normalizer struct {
	strategies []Strategy
	policy     fallback.Policy
}

// NewNormalizer creates a Normalizer. Strategies are tried in order.
func NewNormalizer(policy fallback.Policy, strategies ...Strategy) *Normalizer {
	return &Normalizer{strategies: strategies, policy: policy}
}

// Normalize writes a 16-bit PCM mono WAV next to in and returns its path.
func (n *Normalizer) Normalize(ctx context.Context, in string) (string, error) {
	st, err := os.Stat(in)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if st.Size() == 0 {
		return "", ErrEmptyFile
	}

	out := strings.TrimSuffix(in, filepath.Ext(in)) + ".normalized.wav"

	_, err = fallback.Run(ctx, n.strategies, n.policy, func(ctx context.Context, s Strategy) (struct{}, error) {
		os.Remove(out)
		if err := s.Convert(ctx, in, out); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, checkOutput(out)
	})
	if err != nil {
		os.Remove(out)
		return "", err
	}
	return out, nil
}

func checkOutput(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: output file missing: %v", ErrConversion, err)
	}
	if st.Size() == 0 {
		return fmt.Errorf("%w: output file is empty", ErrConversion)
	}
	return nil
}

func ffmpegArgs(in, out string, sampleRate int) []string {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return []string{
		"-hide_banner", "-nostdin", "-y",
		"-i", in,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		out,
	}
}

func exitError(tool string, res runtime.ExitResult) error {
	msg := strings.TrimSpace(res.Stderr)
	if len(msg) > 500 {
		msg = msg[len(msg)-500:]
	}
	if msg == "" && res.Error != nil {
		msg = res.Error.Error()
	}
	return fmt.Errorf("%w: %s exited with code %d: %s", ErrConversion, tool, res.ExitCode, msg)
}

// FFmpegStrategy runs a local ffmpeg binary.
type FFmpegStrategy struct {
	rt         runtime.Runtime
	path       string
	sampleRate int
	lookPath   func(string) (string, error)
}

// NewFFmpegStrategy creates the local ffmpeg strategy.
func NewFFmpegStrategy(rt runtime.Runtime, ffmpegPath string, sampleRate int) *FFmpegStrategy {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegStrategy{rt: rt, path: ffmpegPath, sampleRate: sampleRate, lookPath: exec.LookPath}
}

func (s *FFmpegStrategy) Name() string { return "ffmpeg" }

func (s *FFmpegStrategy) Available() error {
	if _, err := s.lookPath(s.path); err != nil {
		return fmt.Errorf("%w: %s not found: %v", fallback.ErrUnavailable, s.path, err)
	}
	return nil
}

func (s *FFmpegStrategy) Convert(ctx context.Context, in, out string) error {
	res, err := runtime.Run(ctx, s.rt, runtime.StartOptions{
		Command: append([]string{s.path}, ffmpegArgs(in, out, s.sampleRate)...),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if res.ExitCode != 0 {
		return exitError("ffmpeg", res)
	}
	return nil
}

// ContainerRuntime is a runtime that can report whether its daemon is reachable.
type ContainerRuntime interface {
	runtime.Runtime
	Ping(ctx context.Context) error
}

// DockerStrategy runs ffmpeg inside a container with the work directory bind-mounted.
// The image's entrypoint must be ffmpeg.
type DockerStrategy struct {
	rt         ContainerRuntime
	image      string
	sampleRate int
}

// NewDockerStrategy creates the containerized ffmpeg strategy. rt may be nil when no
// Docker client could be built, in which case the strategy reports itself unavailable.
func NewDockerStrategy(rt ContainerRuntime, image string, sampleRate int) *DockerStrategy {
	return &DockerStrategy{rt: rt, image: image, sampleRate: sampleRate}
}

const containerWorkDir = "/work"

func (s *DockerStrategy) Name() string { return "docker" }

func (s *DockerStrategy) Available() error {
	if s.rt == nil {
		return fmt.Errorf("%w: no docker client", fallback.ErrUnavailable)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.rt.Ping(ctx); err != nil {
		return fmt.Errorf("%w: docker daemon not reachable: %v", fallback.ErrUnavailable, err)
	}
	return nil
}

func (s *DockerStrategy) Convert(ctx context.Context, in, out string) error {
	dir := filepath.Dir(in)
	if filepath.Dir(out) != dir {
		return fmt.Errorf("%w: input and output must share a directory", ErrConversion)
	}

	res, err := runtime.Run(ctx, s.rt, runtime.StartOptions{
		Image: s.image,
		Command: ffmpegArgs(
			containerWorkDir+"/"+filepath.Base(in),
			containerWorkDir+"/"+filepath.Base(out),
			s.sampleRate,
		),
		Mounts:  []runtime.Mount{{Source: dir, Target: containerWorkDir}},
		WorkDir: containerWorkDir,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConversion, err)
	}
	if res.ExitCode != 0 {
		return exitError("ffmpeg container", res)
	}
	return nil
}

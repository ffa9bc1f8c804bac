// Package transcoder normalizes audio into the format the transcription
// service accepts.
package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/scratch"
	"sales-call-insights-go/internal/types"
)

// Runner converts in to out using the given container format.
type Runner interface {
	Convert(ctx context.Context, in, out, format string) error
}

// FFmpeg runs the ffmpeg binary through ffmpeg-go.
type FFmpeg struct {
	// Path overrides the binary looked up on PATH.
	Path string
}

func (f FFmpeg) Convert(ctx context.Context, in, out, format string) error {
	var stderr bytes.Buffer
	stream := ffmpeg.Input(in).
		Output(out, ffmpeg.KwArgs{"format": format}).
		OverWriteOutput().
		WithErrorOutput(&stderr)
	if f.Path != "" && f.Path != "ffmpeg" {
		stream = stream.SetFfmpegPath(f.Path)
	}

	cmd := stream.Compile()
	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %s", err, lastLine(stderr.String()))
		}
		return nil
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-done
		return ctx.Err()
	}
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "\n"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Normalizer writes converted copies into a scratch directory.
type Normalizer struct {
	runner Runner
	dir    scratch.Dir
	format string
}

func NewNormalizer(r Runner, dir scratch.Dir, format string) *Normalizer {
	if format == "" {
		format = "mp3"
	}
	return &Normalizer{runner: r, dir: dir, format: format}
}

// Normalize converts src and returns the path of the new scratch file. A run
// that exits cleanly but leaves no output is still a ConversionError.
func (n *Normalizer) Normalize(ctx context.Context, src string) (string, error) {
	log := logger.Component("transcoder").With("src", src)

	if err := n.dir.Ensure(); err != nil {
		return "", types.NewError(types.KindConversion, "failed to prepare scratch dir", err)
	}
	out := n.dir.Path("converted", "."+n.format)

	if err := n.runner.Convert(ctx, src, out, n.format); err != nil {
		if rmErr := scratch.Remove(out); rmErr != nil {
			log.WithError(rmErr).Warn("failed to remove partial conversion")
		}
		return "", types.NewError(types.KindConversion, "audio conversion failed", err)
	}
	if !scratch.Exists(out) {
		return "", types.NewError(types.KindConversion, "audio conversion produced no output", nil)
	}

	log.WithField("out", out).Info("audio normalized")
	return out, nil
}

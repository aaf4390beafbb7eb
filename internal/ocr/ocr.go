// Package ocr converts receipt images into raw text.
//
// Extractors never return errors: any failure (undecodable image, missing
// OCR binary, timeout) is logged and reported as an empty string, which the
// receipt parser reads as a receipt without a date or items.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Extractor returns the text found in an in-memory image.
type Extractor interface {
	ExtractText(ctx context.Context, img []byte) string
}

// Runner executes an external command feeding stdin and returning stdout.
type Runner func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// Tesseract shells out to the tesseract CLI, passing the image on stdin.
type Tesseract struct {
	binary  string
	timeout time.Duration
	run     Runner
}

// NewTesseract creates an extractor for the given binary path.
// A zero timeout disables the per-call deadline.
func NewTesseract(binary string, timeout time.Duration) *Tesseract {
	if strings.TrimSpace(binary) == "" {
		binary = "tesseract"
	}
	return &Tesseract{binary: binary, timeout: timeout, run: execRunner}
}

// WithRunner replaces the command runner, mainly for tests.
func (t *Tesseract) WithRunner(r Runner) *Tesseract {
	t.run = r
	return t
}

// ExtractText validates that img is a PNG or JPEG and runs OCR on it.
func (t *Tesseract) ExtractText(ctx context.Context, img []byte) string {
	if _, format, err := image.DecodeConfig(bytes.NewReader(img)); err != nil {
		slog.WarnContext(ctx, "Rejected receipt image", "error", err, "size", len(img))
		return ""
	} else {
		slog.DebugContext(ctx, "Running OCR", "format", format, "size", len(img))
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := t.run(ctx, t.binary, []string{"stdin", "stdout"}, img)
	if err != nil {
		slog.ErrorContext(ctx, "OCR failed", "binary", t.binary, "error", err)
		return ""
	}
	slog.InfoContext(ctx, "OCR completed",
		"chars", len(out),
		"duration_ms", time.Since(start).Milliseconds())
	return string(out)
}

func execRunner(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w (stderr: %s)", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Static returns a fixed text for any image; useful for demos and tests.
type Static string

func (s Static) ExtractText(context.Context, []byte) string { return string(s) }

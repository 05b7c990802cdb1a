package ocr

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// Engine extracts text from a scanned region image on disk.
type Engine interface {
	ExtractPath(ctx context.Context, path string) (string, error)
}

type TesseractOCR struct {
	Lang    string
	Timeout time.Duration
}

func NewTesseractOCR() *TesseractOCR {
	return &TesseractOCR{Lang: "eng", Timeout: 20 * time.Second}
}

func (t *TesseractOCR) ExtractPath(ctx context.Context, path string) (string, error) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", errors.New("tesseract not found in PATH")
	}
	args := []string{path, "stdout"}
	if t.Lang != "" {
		args = append(args, "-l", t.Lang)
	}
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "tesseract", args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", errors.New(stderr.String())
	}
	return out.String(), nil
}

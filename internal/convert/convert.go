// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements LaTeX-to-PDF conversion with pluggable backends.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pdiddy/texpreview/internal/container"
	"github.com/pdiddy/texpreview/internal/secrets"
	"github.com/pdiddy/texpreview/internal/source"
	"github.com/pdiddy/texpreview/pkg/types"
)

// Converter transforms LaTeX source into a rendered artifact. Different
// backends (container, remote service) implement this interface.
type Converter interface {
	// Convert renders source and returns the resulting artifact.
	Convert(ctx context.Context, source string) (*types.Artifact, error)
}

// ErrEmptyOutput is returned when a backend succeeds without producing a PDF.
var ErrEmptyOutput = errors.New("backend produced empty output")

var pdfMagic = []byte("%PDF-")

// newArtifact validates backend output and wraps it in an Artifact.
func newArtifact(data []byte) (*types.Artifact, error) {
	if len(data) == 0 {
		return nil, ErrEmptyOutput
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, fmt.Errorf("backend output is not a PDF (starts with %q)", preview(data))
	}
	return &types.Artifact{
		ID:          uuid.NewString(),
		Data:        data,
		ContentType: types.ContentTypePDF,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func preview(data []byte) string {
	if len(data) > 16 {
		data = data[:16]
	}
	return string(data)
}

// New builds the converter selected by cfg.Backend and wraps it in a rate
// limiter when cfg.RateLimit is positive.
func New(ctx context.Context, cfg types.ConversionConfig, s secrets.Secrets) (Converter, error) {
	var c Converter

	switch cfg.Backend {
	case "", types.BackendContainer:
		rt, err := container.DetectRuntime(ctx, cfg.Runtime)
		if err != nil {
			return nil, err
		}
		cc, err := NewContainerConverter(ctx, rt, cfg.Image)
		if err != nil {
			return nil, err
		}
		c = cc

	case types.BackendRemote:
		rc, err := NewRemoteConverter(cfg.Endpoint,
			WithAPIKey(s.Get(secrets.KeyConvertAPI)),
			WithUserAgent(cfg.UserAgent),
			WithTimeout(cfg.Timeout),
			WithMaxRetries(cfg.MaxRetries),
		)
		if err != nil {
			return nil, err
		}
		c = rc

	default:
		return nil, fmt.Errorf("unknown conversion backend %q (want container or remote)", cfg.Backend)
	}

	if cfg.RateLimit > 0 {
		c = Limit(c, rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1)))
	}

	return c, nil
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any file failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// ConvertFile converts a single LaTeX file to <outDir>/<name>.pdf. If the PDF
// already exists and force is false it skips conversion. Progress lines are
// written to w.
func ConvertFile(ctx context.Context, c Converter, texPath, outDir string, force bool, w io.Writer) types.ConversionStatus {
	base := strings.TrimSuffix(filepath.Base(texPath), filepath.Ext(texPath))
	name := base + ".pdf"
	pdfPath := filepath.Join(outDir, name)

	if !force {
		if _, err := os.Stat(pdfPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", base)
			return types.ConversionSkipped
		}
	}

	src, err := source.Load(texPath)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return types.ConversionFailed
	}

	artifact, err := c.Convert(ctx, src)
	if err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return types.ConversionFailed
	}

	if _, err := WriteArtifact(outDir, name, artifact); err != nil {
		fmt.Fprintf(w, "failed:  %s (%v)\n", base, err)
		return types.ConversionFailed
	}

	fmt.Fprintf(w, "converted: %s -> %s\n", base, pdfPath)
	return types.ConversionDone
}

// ConvertBatch converts each path in order, printing per-file status to w
// and returning a summary. It stops early when ctx is cancelled.
func ConvertBatch(ctx context.Context, c Converter, texPaths []string, outDir string, force bool, w io.Writer) BatchResult {
	var result BatchResult
	for _, p := range texPaths {
		if ctx.Err() != nil {
			break
		}
		switch ConvertFile(ctx, c, p, outDir, force, w) {
		case types.ConversionDone:
			result.Converted++
		case types.ConversionSkipped:
			result.Skipped++
		case types.ConversionFailed:
			result.Failed++
		}
	}
	fmt.Fprintf(w, "\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result
}

// WriteArtifact writes a to dir/name atomically and returns the final path.
// Viewers watching the file never observe a partially written PDF.
func WriteArtifact(dir, name string, a *types.Artifact) (string, error) {
	if a == nil {
		return "", errors.New("no artifact to write")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(a.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing artifact: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("renaming artifact: %w", err)
	}
	return path, nil
}

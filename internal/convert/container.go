// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/texpreview/internal/container"
	"github.com/pdiddy/texpreview/pkg/types"
)

// DefaultImage is the TeX image built by `mage image`. It reads a LaTeX
// document on stdin and writes the PDF to stdout.
const DefaultImage = "texpreview-latex:latest"

// ContainerConverter renders LaTeX by piping it through a TeX container
// image. It depends on a container.Runtime (docker or podman) injected at
// construction time.
type ContainerConverter struct {
	runtime container.Runtime
	image   string
}

// NewContainerConverter creates a converter that runs image on rt. It
// verifies that the image exists locally before returning.
func NewContainerConverter(ctx context.Context, rt container.Runtime, image string) (*ContainerConverter, error) {
	if image == "" {
		image = DefaultImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("TeX image not available in %s: %w", rt.Name(), err)
	}
	return &ContainerConverter{runtime: rt, image: image}, nil
}

// Convert pipes source through the TeX container and returns the PDF.
func (c *ContainerConverter) Convert(ctx context.Context, source string) (*types.Artifact, error) {
	var out bytes.Buffer
	if err := c.runtime.Run(ctx, c.image, strings.NewReader(source), &out); err != nil {
		return nil, fmt.Errorf("compiling with %s: %w", c.image, err)
	}
	return newArtifact(out.Bytes())
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/pdiddy/texpreview/pkg/types"
)

type limitedConverter struct {
	limiter  *rate.Limiter
	provider Converter
}

// Limit returns a Converter that waits for a token from l before each call.
func Limit(c Converter, l *rate.Limiter) Converter {
	return &limitedConverter{
		limiter:  l,
		provider: c,
	}
}

func (c *limitedConverter) Convert(ctx context.Context, source string) (*types.Artifact, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}
	return c.provider.Convert(ctx, source)
}

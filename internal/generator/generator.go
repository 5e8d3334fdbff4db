// Package generator is the boundary to the external insight generation service.
//
// Implementations may fail for any reason (network, credentials, malformed
// upstream output). They must return either a complete insight or an error;
// callers never receive a partially filled insight without an error.
package generator

import (
	"context"
	"errors"

	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/danielpatrickdp/aura-plan/internal/insight"
)

// ErrNoCredentials is returned when a generator has no API key configured.
var ErrNoCredentials = errors.New("generator credentials not configured")

// Generator produces a reflective insight for a bucket's tasks.
type Generator interface {
	Generate(ctx context.Context, b horizon.Bucket, tasks []string) (insight.Insight, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, b horizon.Bucket, tasks []string) (insight.Insight, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, b horizon.Bucket, tasks []string) (insight.Insight, error) {
	return f(ctx, b, tasks)
}

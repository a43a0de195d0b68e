package renderer

import (
	"grapple/internal/log"
	"grapple/internal/text"
)

type options struct {
	quadsPerBatch int
	logger        *log.Logger
	font          text.Options
}

type Option func(*options)

// WithQuadsPerBatch sets how many quads one submission can hold.
func WithQuadsPerBatch(n int) Option {
	return func(o *options) { o.quadsPerBatch = n }
}

func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithFont configures the text renderer.
func WithFont(f text.Options) Option {
	return func(o *options) { o.font = f }
}

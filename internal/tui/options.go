package tui

import (
	"github.com/evanschultz/reeldesk/internal/app"
	"github.com/evanschultz/reeldesk/internal/domain"
)

type Option func(*Model)

// WithPipeline sets the board categories.
func WithPipeline(pipeline domain.Pipeline) Option {
	return func(m *Model) {
		if len(pipeline) > 0 {
			m.pipeline = pipeline
		}
	}
}

func WithReorderOptions(opts app.ReorderOptions) Option {
	return func(m *Model) {
		m.reorderOpts = opts
	}
}

// WithNotifications routes engine notifications into the status line.
func WithNotifications(notes *app.Notifications) Option {
	return func(m *Model) {
		if notes != nil {
			m.notes = notes
		}
	}
}

func WithLogger(logger app.Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithMediaURL resolves the public URL copied by the copy key.
func WithMediaURL(resolve func(domain.Item) string) Option {
	return func(m *Model) {
		m.mediaURL = resolve
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

func WithKeyOverrides(o KeyOverrides) Option {
	return func(m *Model) {
		m.keys.applyOverrides(o)
	}
}

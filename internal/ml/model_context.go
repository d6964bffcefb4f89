package ml

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ModelContext holds the scaler and regressor loaded at startup. It is built
// once and never mutated afterwards, except for Close, so readers need no lock.
//
// An unavailable context remembers why loading failed; every accessor then
// reports ErrModelUnavailable.
type ModelContext struct {
	id           string
	dir          string
	scaler       Scaler
	regressor    Regressor
	metadata     *ModelMetadata
	loadedAt     time.Time
	modelCreated time.Time
	cause        error
	closed       atomic.Bool
}

func newModelContext(id, dir string, scaler Scaler, regressor Regressor, metadata *ModelMetadata, modelCreated time.Time) *ModelContext {
	now := time.Now()
	if modelCreated.IsZero() {
		modelCreated = now
	}
	return &ModelContext{
		id:           id,
		dir:          dir,
		scaler:       scaler,
		regressor:    regressor,
		metadata:     metadata,
		loadedAt:     now,
		modelCreated: modelCreated,
	}
}

// NewModelContext wraps already-built components. A nil metadata gets defaults.
// In-memory components have no artifact bytes to derive an id from, so each
// context gets a fresh random one.
func NewModelContext(scaler Scaler, regressor Regressor, metadata *ModelMetadata) (*ModelContext, error) {
	if scaler == nil || regressor == nil {
		return nil, fmt.Errorf("%w: scaler and regressor are required", ErrModelUnavailable)
	}
	if metadata == nil {
		metadata = defaultMetadata("custom")
	}
	return newModelContext(uuid.NewString(), "", scaler, regressor, metadata, metadata.TrainedAt), nil
}

// Unavailable returns a context that refuses all inference with cause.
func Unavailable(cause error) *ModelContext {
	if cause == nil {
		cause = ErrModelUnavailable
	}
	return &ModelContext{cause: cause, loadedAt: time.Now()}
}

// Available reports whether inference can be attempted.
func (m *ModelContext) Available() bool {
	return m != nil && m.cause == nil && !m.closed.Load()
}

// Err returns nil when available, otherwise an error wrapping ErrModelUnavailable.
func (m *ModelContext) Err() error {
	switch {
	case m == nil:
		return ErrModelUnavailable
	case m.cause != nil:
		if errors.Is(m.cause, ErrModelUnavailable) {
			return m.cause
		}
		return fmt.Errorf("%w: %v", ErrModelUnavailable, m.cause)
	case m.closed.Load():
		return fmt.Errorf("%w: model context closed", ErrModelUnavailable)
	}
	return nil
}

// ID identifies the loaded artifacts. Contexts loaded from identical files
// share an id. It is empty when the context is unavailable.
func (m *ModelContext) ID() string {
	if m == nil {
		return ""
	}
	return m.id
}

func (m *ModelContext) Scaler() Scaler       { return m.scaler }
func (m *ModelContext) Regressor() Regressor { return m.regressor }
func (m *ModelContext) Dir() string          { return m.dir }
func (m *ModelContext) LoadedAt() time.Time  { return m.loadedAt }

// Metadata returns a copy of the model metadata, or nil when unavailable.
func (m *ModelContext) Metadata() *ModelMetadata {
	if m == nil || m.metadata == nil {
		return nil
	}
	md := *m.metadata
	md.Features = append([]string(nil), m.metadata.Features...)
	return &md
}

// Age is the time since the model artifacts were produced.
func (m *ModelContext) Age() time.Duration {
	if m == nil || m.modelCreated.IsZero() {
		return 0
	}
	return time.Since(m.modelCreated)
}

// Close marks the context unusable. In-flight requests that already hold the
// scaler and regressor finish normally.
func (m *ModelContext) Close() {
	if m != nil {
		m.closed.Store(true)
	}
}

package cache

import (
	"sync"

	"github.com/arsdragonfly/ultralogi/pkg/errors"
	"github.com/arsdragonfly/ultralogi/pkg/metrics"
)

// BufferSlot is a single-slot cache holding one fully computed byte buffer.
// Each Store replaces the previous buffer wholesale; concurrent stores race
// last-write-wins, which is accepted for this tier.
type BufferSlot struct {
	mu   sync.Mutex
	buf  []byte
	tier string
}

// NewBufferSlot returns an empty slot. tier labels the slot in metrics and
// errors (e.g. "gpu", "raw").
func NewBufferSlot(tier string) *BufferSlot {
	return &BufferSlot{tier: tier}
}

// Store replaces the slot's buffer. The slot takes ownership of buf.
func (s *BufferSlot) Store(buf []byte) {
	s.mu.Lock()
	s.buf = buf
	s.mu.Unlock()

	metrics.BufferBytes.WithLabelValues(s.tier).Set(float64(len(buf)))
}

// Fetch returns a duplicate of the stored buffer. It never touches the
// engine, so cost scales only with the buffer's byte size. Fails with a
// not-initialized error if no precompute has run.
func (s *BufferSlot) Fetch() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buf == nil {
		metrics.CacheMisses.WithLabelValues(s.tier).Inc()
		return nil, errors.Newf(errors.ErrorTypeNotInitialized,
			"%s cache not initialized, run precompute first", s.tier)
	}

	metrics.CacheHits.WithLabelValues(s.tier).Inc()
	return append([]byte(nil), s.buf...), nil
}

// Initialized reports whether a precompute has populated the slot.
func (s *BufferSlot) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf != nil
}

// Clear empties the slot; the next Fetch fails with not-initialized.
func (s *BufferSlot) Clear() {
	s.mu.Lock()
	s.buf = nil
	s.mu.Unlock()

	metrics.BufferBytes.WithLabelValues(s.tier).Set(0)
}

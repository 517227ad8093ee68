// Package progress fans run events out to consumers without ever blocking
// the normalization loop.
package progress

import (
	"github.com/agenthands/canon/internal/core/model"
)

// Sink receives progress events. Emit must not block.
type Sink interface {
	Emit(ev model.ProgressEvent)
}

type Discard struct{}

func (Discard) Emit(model.ProgressEvent) {}

// Multi emits to every sink in order.
type Multi []Sink

func (m Multi) Emit(ev model.ProgressEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// Func adapts a function to a Sink.
type Func func(ev model.ProgressEvent)

func (f Func) Emit(ev model.ProgressEvent) { f(ev) }

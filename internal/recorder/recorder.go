// Package recorder implements the event recording engine: event
// lifecycle, storage layout, frame classification and buffering, and the
// batched persistence discipline against the shared record store.
package recorder

import (
	"context"

	"github.com/technosupport/ts-recorder/internal/data"
)

// Recorder binds the shared store handle and process-wide collaborators.
// Capture pipelines open their events through it so every event picks up
// the current capture options and the same notifier/mirror wiring.
type Recorder struct {
	Store    *data.Store
	Notifier LifecycleNotifier
	Mirror   AggregateMirror

	// Options returns the capture options to apply to a new event,
	// normally backed by the hot-reloadable config manager.
	Options func() CaptureOptions
}

// OpenEvent opens a recording session with the recorder's shared wiring.
// The current capture options always apply; a notifier or mirror already
// set on o wins over the shared one.
func (r *Recorder) OpenEvent(ctx context.Context, o OpenOptions) (*Event, error) {
	if r.Options != nil {
		o.Capture = r.Options()
	}
	if o.Notifier == nil {
		o.Notifier = r.Notifier
	}
	if o.Mirror == nil {
		o.Mirror = r.Mirror
	}
	return Open(ctx, r.Store, o)
}

package recorder

import (
	"github.com/technosupport/ts-recorder/internal/data"
)

// FrameBuffer is the ordered queue of frame records pending durable
// insert. Append-only between flushes; a flush consumes the whole queue.
type FrameBuffer struct {
	pending []*data.FrameRecord
}

func (b *FrameBuffer) Offer(r *data.FrameRecord) {
	b.pending = append(b.pending, r)
}

func (b *FrameBuffer) Len() int {
	return len(b.pending)
}

// Drain hands over every buffered record in FIFO order and empties the
// buffer. Ownership passes to the caller; records are never re-enqueued.
func (b *FrameBuffer) Drain() []*data.FrameRecord {
	out := b.pending
	b.pending = nil
	return out
}

// ShouldBuffer decides whether a frame gets a durable record at all.
// Normal and Alarm frames always do; Bulk frames are subsampled to the
// first frame plus every bulkInterval'th, roughly one durable bulk record
// per second of capture.
func ShouldBuffer(frameType FrameType, frameNumber, bulkInterval int) bool {
	if frameType != FrameBulk || frameNumber == 1 {
		return true
	}
	return bulkInterval > 0 && frameNumber%bulkInterval == 0
}

// ShouldFlush decides whether the buffer is written out now. keyImage is
// the must-update-durably signal (first frame or new best score, the web
// UI thumbnail depends on it); captureFPS bounds staleness to about one
// second of buffered frames; Bulk frames always force a flush.
func ShouldFlush(keyImage bool, captureFPS float64, buffered int, frameType FrameType) bool {
	if keyImage || frameType == FrameBulk {
		return true
	}
	return captureFPS > 0 && float64(buffered) > captureFPS
}

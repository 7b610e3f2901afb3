package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/technosupport/ts-recorder/internal/data"
)

// SaveJPEGs bitmask: bit 1 writes per-frame capture images, bit 2 writes
// analysis images for alarm frames.
const (
	SaveJPEGsCapture = 1 << 0
	SaveJPEGsAnalyse = 1 << 1
)

// Frame deltas land in a DECIMAL(8,2) column: six integer digits.
const maxDeltaSeconds = 999999

// Pre-roll frame arrays are inserted in chunks of this size.
const preRollBatchSize = 100

var ErrEventClosed = errors.New("event already closed")

// Monitor describes the capture source an event records for.
type Monitor struct {
	ID          int64
	Width       int
	Height      int
	Orientation int
	EventPrefix string
	CaptureFPS  float64
}

// StorageArea is the storage root the event's artifacts land under.
type StorageArea struct {
	ID     int64
	Root   string
	Scheme StorageScheme
}

// CaptureOptions is the per-monitor capture behaviour, typically loaded
// from config.
type CaptureOptions struct {
	SaveJPEGs          int
	JPEGQuality        int
	JPEGAlarmQuality   int
	TimestampOnCapture bool
	BulkInterval       int
	CaptureFileFormat  string
	AnalyseFileFormat  string
}

// VideoWriter is the external encoder capability. StartTime reports when
// the writer actually began recording (it may buffer lead-in frames before
// the event's logical start); zero means unknown.
type VideoWriter interface {
	Open() error
	Encode(img Image, offsetMillis int64) error
	Close() error
	StartTime() time.Time
}

// LifecycleNotifier receives event open/close notifications. Optional.
type LifecycleNotifier interface {
	EventOpened(ctx context.Context, eventID, monitorID int64, cause string, start time.Time)
	EventClosed(ctx context.Context, eventID, monitorID int64, agg data.EventAggregates)
}

// AggregateMirror mirrors in-progress aggregates somewhere cheap to read.
// Optional; failures are logged, never block capture.
type AggregateMirror interface {
	MirrorAggregates(ctx context.Context, eventID int64, agg data.EventAggregates) error
	Remove(ctx context.Context, eventID int64) error
}

// PreRollFrame is one frame captured before the triggering condition,
// supplied in bulk at event open.
type PreRollFrame struct {
	Image     Image
	Timestamp time.Time
}

type eventState int

const (
	stateOpen eventState = iota
	stateClosing
	stateClosed
)

// OpenOptions carries everything needed to open a recording session.
type OpenOptions struct {
	Monitor   Monitor
	Storage   StorageArea
	StartTime time.Time
	Cause     string
	Notes     NoteSetMap
	Capture   CaptureOptions

	// NewWriter builds the encoder for the given video file path. nil
	// records an image-only event.
	NewWriter func(videoFile string, m Monitor) VideoWriter

	Notifier LifecycleNotifier
	Mirror   AggregateMirror
}

// Event is one bounded recording session for a monitor. Not safe for
// concurrent use; the capture pipeline drives it from a single goroutine.
type Event struct {
	id      int64
	monitor Monitor
	storage StorageArea
	opts    CaptureOptions

	events data.EventModel
	frames data.FrameModel

	startTime time.Time
	endTime   time.Time
	cause     string
	notes     NoteSetMap

	path         string
	snapshotFile string
	alarmFile    string
	videoName    string
	videoFile    string

	frameCount         int
	alarmFrameCount    int
	totScore           int
	maxScore           int
	lastPersistedFrame int
	alarmFrameWritten  bool

	buffer FrameBuffer
	writer VideoWriter

	notifier LifecycleNotifier
	mirror   AggregateMirror

	state eventState
}

// Open allocates the durable event row, resolves the storage layout and
// opens the encoder. An insert failure is a hard construction failure: no
// half-built event is ever returned. Directory or encoder trouble degrades
// the event but does not fail it.
func Open(ctx context.Context, store *data.Store, o OpenOptions) (*Event, error) {
	e := &Event{
		monitor:  o.Monitor,
		storage:  o.Storage,
		opts:     o.Capture,
		events:   data.EventModel{Store: store},
		frames:   data.FrameModel{Store: store},
		cause:    o.Cause,
		notes:    o.Notes,
		notifier: o.Notifier,
		mirror:   o.Mirror,
	}
	if e.notes == nil {
		e.notes = NoteSetMap{}
	}
	if e.opts.CaptureFileFormat == "" {
		e.opts.CaptureFileFormat = "%s/%05d-capture.jpg"
	}
	if e.opts.AnalyseFileFormat == "" {
		e.opts.AnalyseFileFormat = "%s/%05d-analyse.jpg"
	}

	now := time.Now()
	e.startTime = o.StartTime
	if e.startTime.IsZero() || e.startTime.Unix() <= 0 {
		log.Printf("[WARN] Event: zero start time for monitor %d, using current time", e.monitor.ID)
		e.startTime = now
	} else if e.startTime.After(now) {
		log.Printf("[ERROR] Event: start time in the future %v > %v, clamping", e.startTime, now)
		e.startTime = now
	}

	stateID, err := e.events.ActiveStateID(ctx)
	if err != nil {
		stateID = 0
	}

	videoed := o.NewWriter != nil
	defaultVideo := ""
	if videoed {
		defaultVideo = "video.mp4"
	}

	row := &data.EventRow{
		MonitorID:    e.monitor.ID,
		StorageID:    e.storage.ID,
		Name:         data.ProvisionalName,
		StartTime:    e.startTime,
		Width:        e.monitor.Width,
		Height:       e.monitor.Height,
		Cause:        e.cause,
		Notes:        e.notes.Render(),
		StateID:      stateID,
		Orientation:  e.monitor.Orientation,
		Videoed:      videoed,
		DefaultVideo: defaultVideo,
		SaveJpegs:    e.opts.SaveJPEGs,
		Scheme:       e.storage.Scheme.String(),
	}
	if err := e.events.Insert(ctx, row); err != nil {
		return nil, fmt.Errorf("create event for monitor %d: %w", e.monitor.ID, err)
	}
	e.id = row.ID

	path, err := ResolveEventPath(e.storage.Root, e.monitor.ID, e.id, e.startTime, e.storage.Scheme)
	if err != nil {
		// Degraded: per-frame image writes into the missing path will fail
		// and be logged individually.
		log.Printf("[ERROR] Event %d: storage path setup incomplete: %v", e.id, err)
	}
	e.path = path
	e.snapshotFile = path + "/snapshot.jpg"
	e.alarmFile = path + "/alarm.jpg"

	if videoed {
		e.videoName = fmt.Sprintf("%d-video.mp4", e.id)
		e.videoFile = e.path + "/" + e.videoName
		if err := e.events.SetDefaultVideo(ctx, e.id, e.videoName); err != nil {
			log.Printf("[ERROR] Event %d: can't record video name: %v", e.id, err)
		}

		e.writer = o.NewWriter(e.videoFile, e.monitor)
		if e.writer != nil {
			if err := e.writer.Open(); err != nil {
				log.Printf("[ERROR] Event %d: failed opening video stream, continuing image-only: %v", e.id, err)
				e.writer = nil
			}
		}
	}

	if e.notifier != nil {
		e.notifier.EventOpened(ctx, e.id, e.monitor.ID, e.cause, e.startTime)
	}
	metricEventsOpen.Inc()
	metricEventsTotal.WithLabelValues("opened").Inc()
	return e, nil
}

func (e *Event) ID() int64            { return e.id }
func (e *Event) Path() string         { return e.path }
func (e *Event) StartTime() time.Time { return e.startTime }
func (e *Event) FrameCount() int      { return e.frameCount }
func (e *Event) AlarmFrameCount() int { return e.alarmFrameCount }
func (e *Event) MaxScore() int        { return e.maxScore }

func (e *Event) aggregates() data.EventAggregates {
	return data.EventAggregates{
		Length:      roundDelta(e.endTime.Sub(e.startTime).Seconds()),
		Frames:      e.frameCount,
		AlarmFrames: e.alarmFrameCount,
		TotScore:    e.totScore,
		MaxScore:    e.maxScore,
	}
}

// AddFrame ingests one captured frame. analysisImage is the optional
// secondary image produced by motion analysis; it is only written for
// alarm frames when analysis saving is enabled.
func (e *Event) AddFrame(ctx context.Context, img Image, timestamp time.Time, score int, analysisImage Image) error {
	if e.state != stateOpen {
		return ErrEventClosed
	}
	if timestamp.IsZero() || timestamp.Unix() <= 0 {
		metricFramesRejected.Inc()
		return nil
	}

	e.frameCount++
	keyImage := false
	score, frameType := ClassifyScore(score)
	metricFramesTotal.WithLabelValues(frameType.String()).Inc()

	if e.opts.SaveJPEGs&SaveJPEGsCapture != 0 {
		captureFile := fmt.Sprintf(e.opts.CaptureFileFormat, e.path, e.frameCount)
		if err := e.writeStill(img, timestamp, captureFile, false); err != nil {
			metricStillWriteErrors.Inc()
			log.Printf("[ERROR] Event %d: failed to write capture frame %d: %v", e.id, e.frameCount, err)
		}
	}

	// First frame or a new best score refreshes the thumbnail; the row
	// must reach the store so the UI can show it.
	if e.frameCount == 1 || score > e.maxScore {
		keyImage = true
		if err := e.writeStill(img, timestamp, e.snapshotFile, false); err != nil {
			metricStillWriteErrors.Inc()
			log.Printf("[ERROR] Event %d: failed to write snapshot: %v", e.id, err)
		}
	}

	if frameType == FrameAlarm {
		// The first scored frame is the one that alarmed the event.
		if !e.alarmFrameWritten {
			keyImage = true
			e.alarmFrameWritten = true
			if err := e.writeStill(img, timestamp, e.alarmFile, false); err != nil {
				metricStillWriteErrors.Inc()
				log.Printf("[ERROR] Event %d: failed to write alarm image: %v", e.id, err)
			}
		}
		e.alarmFrameCount++
		e.totScore += score
		if score > e.maxScore {
			e.maxScore = score
		}

		if analysisImage != nil && e.opts.SaveJPEGs&SaveJPEGsAnalyse != 0 {
			analyseFile := fmt.Sprintf(e.opts.AnalyseFileFormat, e.path, e.frameCount)
			if err := e.writeStill(analysisImage, timestamp, analyseFile, true); err != nil {
				metricStillWriteErrors.Inc()
				log.Printf("[ERROR] Event %d: failed to write analysis frame %d: %v", e.id, e.frameCount, err)
			}
		}
	}

	if e.writer != nil {
		e.encodeVideoFrame(img, timestamp)
	}

	delta := e.frameDelta(timestamp)
	e.endTime = timestamp

	if ShouldBuffer(frameType, e.frameCount, e.opts.BulkInterval) {
		e.buffer.Offer(&data.FrameRecord{
			EventID:   e.id,
			FrameID:   e.frameCount,
			Type:      frameType.String(),
			Timestamp: timestamp,
			Delta:     delta,
			Score:     score,
		})
		if ShouldFlush(keyImage, e.monitor.CaptureFPS, e.buffer.Len(), frameType) {
			e.flushBuffer(ctx)

			agg := e.aggregates()
			if err := e.events.UpdateAggregates(ctx, e.id, agg); err != nil {
				return fmt.Errorf("event %d aggregate update: %w", e.id, err)
			}
			e.mirrorAggregates(ctx, agg)
		}
	}

	return nil
}

// AddPreRollFrames ingests frames captured before the triggering
// condition. They are classified Normal with score zero and inserted
// synchronously in fixed-size chunks, with the same still-image and video
// side effects as steady-state ingestion.
func (e *Event) AddPreRollFrames(ctx context.Context, preRoll []PreRollFrame) error {
	if e.state != stateOpen {
		return ErrEventClosed
	}
	for start := 0; start < len(preRoll); start += preRollBatchSize {
		end := start + preRollBatchSize
		if end > len(preRoll) {
			end = len(preRoll)
		}
		e.addPreRollChunk(ctx, preRoll[start:end])
	}
	return nil
}

func (e *Event) addPreRollChunk(ctx context.Context, chunk []PreRollFrame) {
	records := make([]*data.FrameRecord, 0, len(chunk))
	for _, f := range chunk {
		if f.Timestamp.IsZero() || f.Timestamp.Unix() <= 0 {
			metricFramesRejected.Inc()
			continue
		}
		e.frameCount++
		metricFramesTotal.WithLabelValues(FrameNormal.String()).Inc()

		if e.opts.SaveJPEGs&SaveJPEGsCapture != 0 {
			captureFile := fmt.Sprintf(e.opts.CaptureFileFormat, e.path, e.frameCount)
			if err := e.writeStill(f.Image, f.Timestamp, captureFile, false); err != nil {
				metricStillWriteErrors.Inc()
				log.Printf("[ERROR] Event %d: failed to write pre-roll frame %d: %v", e.id, e.frameCount, err)
			}
		}
		// Pre-roll rarely shows the motion, but short events may never get
		// a better snapshot, so take one anyway and overwrite it later.
		if e.frameCount == 1 {
			if err := e.writeStill(f.Image, f.Timestamp, e.snapshotFile, false); err != nil {
				metricStillWriteErrors.Inc()
				log.Printf("[ERROR] Event %d: failed to write snapshot: %v", e.id, err)
			}
		}
		if e.writer != nil {
			e.encodeVideoFrame(f.Image, f.Timestamp)
		}

		records = append(records, &data.FrameRecord{
			EventID:   e.id,
			FrameID:   e.frameCount,
			Type:      FrameNormal.String(),
			Timestamp: f.Timestamp,
			Delta:     e.frameDelta(f.Timestamp),
			Score:     0,
		})
		e.endTime = f.Timestamp
	}

	if len(records) == 0 {
		return
	}
	metricFlushesTotal.Inc()
	if err := e.frames.InsertBatch(ctx, records); err != nil {
		metricBatchesDropped.Inc()
		log.Printf("[ERROR] Event %d: pre-roll frame insert failed, batch dropped: %v", e.id, err)
	}
	e.lastPersistedFrame = e.frameCount
}

// UpdateNotes merges incremental annotations into the event's note map and
// persists the rendered notes only when something actually changed.
func (e *Event) UpdateNotes(ctx context.Context, incoming NoteSetMap) error {
	if !e.notes.Merge(incoming) {
		return nil
	}
	if err := e.events.UpdateNotes(ctx, e.id, e.notes.Render()); err != nil {
		return fmt.Errorf("event %d notes update: %w", e.id, err)
	}
	return nil
}

// Close finalizes the event. The encoder is closed first so a finished
// event's video file is never read mid-finalization; then the remaining
// buffer is drained, persisted deltas are realigned to the video start,
// and the closing aggregate update runs with the name-guard fallback.
// endTime zero falls back to the last accepted frame's timestamp.
func (e *Event) Close(ctx context.Context, endTime time.Time) error {
	if e.state != stateOpen {
		return ErrEventClosed
	}
	e.state = stateClosing

	var videoStart time.Time
	if e.writer != nil {
		videoStart = e.writer.StartTime()
		if err := e.writer.Close(); err != nil {
			log.Printf("[ERROR] Event %d: failed closing video stream: %v", e.id, err)
		}
		e.writer = nil
	}

	if !endTime.IsZero() {
		e.endTime = endTime
	}
	if e.endTime.IsZero() {
		e.endTime = e.startTime
	}

	if e.buffer.Len() > 0 {
		e.flushBuffer(ctx)
	}

	// The writer may have buffered lead-in frames, putting the video's
	// zero point before the event's logical start. Shift persisted deltas
	// so they match the final video timeline.
	if !videoStart.IsZero() && videoStart.Unix() > 0 {
		offset := videoStart.Sub(e.startTime).Seconds()
		if offset != 0 {
			if err := e.frames.ShiftDeltas(ctx, e.id, offset); err != nil {
				log.Printf("[ERROR] Event %d: can't realign frame deltas by %.4f: %v", e.id, offset, err)
			} else {
				log.Printf("Event %d: shifted frame deltas by %.2fs to match video start", e.id, offset)
			}
		}
	}

	prefix := e.monitor.EventPrefix
	if prefix == "" {
		prefix = "Event-"
	}
	name := fmt.Sprintf("%s%d", prefix, e.id)

	err := e.events.Finalize(ctx, e.id, name, e.endTime, e.aggregates())

	if e.mirror != nil {
		if merr := e.mirror.Remove(ctx, e.id); merr != nil {
			log.Printf("[ERROR] Event %d: can't remove live aggregates: %v", e.id, merr)
		}
	}
	if e.notifier != nil {
		e.notifier.EventClosed(ctx, e.id, e.monitor.ID, e.aggregates())
	}
	metricEventsOpen.Dec()
	metricEventsTotal.WithLabelValues("closed").Inc()

	e.state = stateClosed
	if err != nil {
		return fmt.Errorf("event %d finalize: %w", e.id, err)
	}
	return nil
}

// flushBuffer writes the whole buffer in one batch, single attempt. A
// failed batch is dropped and the high-water mark still advances: gaps in
// frame history are accepted, stalled capture is not.
func (e *Event) flushBuffer(ctx context.Context) {
	records := e.buffer.Drain()
	if len(records) == 0 {
		return
	}
	metricFlushesTotal.Inc()
	if err := e.frames.InsertBatch(ctx, records); err != nil {
		metricBatchesDropped.Inc()
		log.Printf("[ERROR] Event %d: frame insert failed, dropping batch of %d: %v", e.id, len(records), err)
	}
	e.lastPersistedFrame = e.frameCount
}

func (e *Event) encodeVideoFrame(img Image, timestamp time.Time) {
	if !e.opts.TimestampOnCapture {
		stamped := img.Clone()
		stamped.Annotate(timestamp)
		img = stamped
	}
	offsetMillis := timestamp.Sub(e.startTime).Milliseconds()
	if err := e.writer.Encode(img, offsetMillis); err != nil {
		metricEncodeErrors.Inc()
		log.Printf("[ERROR] Event %d: failed encoding video frame %d: %v", e.id, e.frameCount, err)
	}
}

func (e *Event) mirrorAggregates(ctx context.Context, agg data.EventAggregates) {
	if e.mirror == nil {
		return
	}
	if err := e.mirror.MirrorAggregates(ctx, e.id, agg); err != nil {
		log.Printf("[ERROR] Event %d: can't mirror live aggregates: %v", e.id, err)
	}
}

// frameDelta computes the frame's offset from event start at 2-decimal
// precision, clamped when the integer part would overflow the column.
func (e *Event) frameDelta(timestamp time.Time) float64 {
	delta := roundDelta(timestamp.Sub(e.startTime).Seconds())
	if delta > maxDeltaSeconds || delta < -maxDeltaSeconds {
		log.Printf("[WARN] Event %d: delta %.2f out of range, storing 0", e.id, delta)
		return 0
	}
	return delta
}

func roundDelta(seconds float64) float64 {
	return math.Round(seconds*100) / 100
}

package recorder

import (
	"time"
)

// Image is the capability the recorder needs from the external image
// codec: copy, burn in a timestamp, and write itself out as JPEG.
// Quality 0 means the codec default.
type Image interface {
	Clone() Image
	Annotate(t time.Time)
	EncodeJPEG(path string, quality int) error
}

// writeStill writes one still image, burning in the timestamp first when
// capture did not. Alarm frames use the alarm quality only when it beats
// the normal one, otherwise the codec default applies.
func (e *Event) writeStill(img Image, ts time.Time, path string, alarmFrame bool) error {
	quality := 0
	if alarmFrame && e.opts.JPEGAlarmQuality > e.opts.JPEGQuality {
		quality = e.opts.JPEGAlarmQuality
	}

	if !e.opts.TimestampOnCapture {
		stamped := img.Clone()
		stamped.Annotate(ts)
		img = stamped
	}
	return img.EncodeJPEG(path, quality)
}

package recorder

// FrameType classifies one captured frame.
type FrameType int

const (
	FrameNormal FrameType = iota
	FrameBulk
	FrameAlarm
)

func (t FrameType) String() string {
	switch t {
	case FrameBulk:
		return "Bulk"
	case FrameAlarm:
		return "Alarm"
	default:
		return "Normal"
	}
}

// ClassifyScore maps a raw motion score to its frame type and normalized
// score. Positive means motion (Alarm), zero means no motion (Normal), and
// negative means scoring was disabled for the frame (Bulk, score forced to
// zero so it never pollutes aggregates).
func ClassifyScore(score int) (int, FrameType) {
	switch {
	case score > 0:
		return score, FrameAlarm
	case score < 0:
		return 0, FrameBulk
	default:
		return 0, FrameNormal
	}
}

package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyScore(t *testing.T) {
	cases := []struct {
		name      string
		raw       int
		wantScore int
		wantType  FrameType
	}{
		{"motion", 5, 5, FrameAlarm},
		{"barely_motion", 1, 1, FrameAlarm},
		{"no_motion", 0, 0, FrameNormal},
		{"scoring_disabled", -1, 0, FrameBulk},
		{"scoring_disabled_large", -100, 0, FrameBulk},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, frameType := ClassifyScore(tc.raw)
			assert.Equal(t, tc.wantScore, score)
			assert.Equal(t, tc.wantType, frameType)
		})
	}
}

func TestFrameTypeNames(t *testing.T) {
	assert.Equal(t, "Normal", FrameNormal.String())
	assert.Equal(t, "Bulk", FrameBulk.String())
	assert.Equal(t, "Alarm", FrameAlarm.String())
}

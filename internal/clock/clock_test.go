package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClockAdvance(t *testing.T) {
	start := time.Date(2024, 1, 31, 23, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)

	c.Advance(2 * time.Hour)

	assert.Equal(t, time.Date(2024, 2, 1, 1, 0, 0, 0, time.UTC), c.Now())
}

func TestDateTruncatesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	in := time.Date(2024, 3, 1, 0, 30, 0, 0, loc)

	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), Date(in))
}

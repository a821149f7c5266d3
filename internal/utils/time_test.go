package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUTCDate(t *testing.T) {
	ist := time.FixedZone("IST", 3*3600)
	local := time.Date(2026, 3, 1, 1, 30, 0, 0, ist)
	assert.Equal(t, "2026-02-28", UTCDate(local))
}

func TestStartOfUTCDay(t *testing.T) {
	ts := time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), StartOfUTCDay(ts))
}

func TestStartOfDay(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	ts := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC) // 21:00 on Mar 1 in loc
	got := StartOfDay(ts, loc)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, loc), got)
}

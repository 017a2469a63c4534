package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSource(t *testing.T) {
	assert.True(t, SourceA.Valid())
	assert.True(t, SourceB.Valid())
	assert.False(t, Source("C").Valid())
	assert.False(t, Source("").Valid())

	assert.Equal(t, SourceB, SourceA.Other())
	assert.Equal(t, SourceA, SourceB.Other())
}

func TestNormalizedPeriod_Accessors(t *testing.T) {
	start := date(2020, 1, 1)
	days := 31
	p := NormalizedPeriod{
		CanonicalCompany: "ACME",
		Start:            &start,
		DurationDays:     &days,
		Flags:            []QualityFlag{FlagMissingDates},
	}

	assert.True(t, p.HasCompany())
	assert.True(t, p.HasFlag(FlagMissingDates))
	assert.False(t, p.HasFlag(FlagInvalidDuration))
	assert.False(t, p.Dated())

	d, ok := p.Duration()
	assert.True(t, ok)
	assert.Equal(t, 31, d)

	var empty NormalizedPeriod
	assert.False(t, empty.HasCompany())
	_, ok = empty.Duration()
	assert.False(t, ok)
}

func TestDays(t *testing.T) {
	withClock := time.Date(2020, 3, 1, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, date(2020, 3, 1), Day(withClock))

	assert.Equal(t, 0, DaysBetween(date(2020, 1, 1), date(2020, 1, 1)))
	assert.Equal(t, 60, DaysBetween(date(2020, 1, 1), date(2020, 3, 1)))
	assert.Equal(t, -1, DaysBetween(date(2020, 1, 2), date(2020, 1, 1)))
	assert.Equal(t, 366, InclusiveDays(date(2020, 1, 1), date(2020, 12, 31)))
}

func TestIntersect(t *testing.T) {
	start, end, days := Intersect(date(2020, 1, 1), date(2020, 6, 30), date(2020, 4, 1), date(2020, 9, 30))
	assert.Equal(t, date(2020, 4, 1), start)
	assert.Equal(t, date(2020, 6, 30), end)
	assert.Equal(t, 91, days)

	_, _, days = Intersect(date(2020, 1, 1), date(2020, 1, 31), date(2020, 2, 1), date(2020, 2, 28))
	assert.Equal(t, 0, days)

	_, _, days = Intersect(date(2020, 1, 1), date(2020, 1, 31), date(2020, 1, 31), date(2020, 2, 28))
	assert.Equal(t, 1, days)
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "", FormatDate(nil))
	d := date(2021, 7, 9)
	assert.Equal(t, "2021-07-09", FormatDate(&d))
}

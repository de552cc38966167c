package trigger

import (
	"fmt"
	"time"

	"github.com/sj14/astral/pkg/astral"
)

// SolarEvent names a daily solar instant.
type SolarEvent string

const (
	SolarDawn     SolarEvent = "dawn"
	SolarDusk     SolarEvent = "dusk"
	SolarMidnight SolarEvent = "solar_midnight"
	SolarNoon     SolarEvent = "solar_noon"
	SolarSunrise  SolarEvent = "sunrise"
	SolarSunset   SolarEvent = "sunset"
)

// Civil twilight depression angle in degrees.
const civilDepression = 6.0

// SolarCalculator computes solar instants for the configured site.
type SolarCalculator struct {
	observer astral.Observer
	location *time.Location
}

// NewSolarCalculator creates a calculator for the given coordinates and
// local timezone.
func NewSolarCalculator(latitude, longitude, elevation float64, location *time.Location) *SolarCalculator {
	return &SolarCalculator{
		observer: astral.Observer{Latitude: latitude, Longitude: longitude, Elevation: elevation},
		location: location,
	}
}

// instant returns the named solar instant on the given calendar day.
func (c *SolarCalculator) instant(event SolarEvent, date time.Time) (time.Time, error) {
	switch event {
	case SolarDawn:
		return astral.Dawn(c.observer, date, civilDepression)
	case SolarDusk:
		return astral.Dusk(c.observer, date, civilDepression)
	case SolarSunrise:
		return astral.Sunrise(c.observer, date)
	case SolarSunset:
		return astral.Sunset(c.observer, date)
	case SolarNoon:
		return astral.Noon(c.observer, date), nil
	case SolarMidnight:
		return astral.Midnight(c.observer, date), nil
	default:
		return time.Time{}, fmt.Errorf("unknown solar event %q", event)
	}
}

// NextOccurrence returns the first instant of the named solar event strictly
// after the given time. At extreme latitudes an event may not occur on a
// given day; scanning is bounded to avoid spinning forever there.
func (c *SolarCalculator) NextOccurrence(event SolarEvent, after time.Time) (time.Time, error) {
	date := after.In(c.location)
	for i := 0; i < 366; i++ {
		instant, err := c.instant(event, date)
		if err == nil && instant.After(after) {
			return instant.In(c.location), nil
		}
		date = date.AddDate(0, 0, 1)
	}
	return time.Time{}, fmt.Errorf("no %s occurrence within a year of %s", event, after)
}

// solarSource is the occurrence lookup the timer runner needs; satisfied by
// SolarCalculator and by test fakes.
type solarSource interface {
	NextOccurrence(event SolarEvent, after time.Time) (time.Time, error)
}

// nextSunRun computes the next run instant for a sun registration.
//
// When rescheduling after a fire, an occurrence sooner than now+20h is pushed
// a day ahead: a negative offset would otherwise fire again for the same
// solar event (e.g. <sunset - 1h> fires, and the "next" sunset is still an
// hour away). A computed run not after now is likewise pushed a day ahead.
func nextSunRun(solar solarSource, event SolarEvent, offset time.Duration, now time.Time, rescheduling bool) (time.Time, error) {
	occurrence, err := solar.NextOccurrence(event, now)
	if err != nil {
		return time.Time{}, err
	}
	if rescheduling && occurrence.Before(now.Add(20*time.Hour)) {
		occurrence = occurrence.Add(24 * time.Hour)
	}
	run := occurrence.Add(offset)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run, nil
}

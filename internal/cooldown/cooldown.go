// Package cooldown computes when a sender may praise the same receiver again.
package cooldown

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Unit is the granularity of a group's cooldown policy.
type Unit string

const (
	UnitNone   Unit = "none"
	UnitSecond Unit = "second"
	UnitMinute Unit = "minute"
	UnitHour   Unit = "hour"
	UnitDay    Unit = "day"
	UnitWeek   Unit = "week"
	UnitMonth  Unit = "month"
	UnitYear   Unit = "year"
)

// Month and year are calendar approximations, not calendar arithmetic.
var unitDurations = map[Unit]time.Duration{
	UnitNone:   0,
	UnitSecond: time.Second,
	UnitMinute: time.Minute,
	UnitHour:   time.Hour,
	UnitDay:    24 * time.Hour,
	UnitWeek:   7 * 24 * time.Hour,
	UnitMonth:  30 * 24 * time.Hour,
	UnitYear:   365 * 24 * time.Hour,
}

// ParseUnit parses a unit name, case-insensitively.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := unitDurations[u]; !ok {
		return "", fmt.Errorf("unknown cooldown unit %q", s)
	}
	return u, nil
}

// Duration returns the length of one unit.
func (u Unit) Duration() time.Duration {
	return unitDurations[u]
}

// Policy is the minimum interval between two praises from the same sender to
// the same receiver within a group.
type Policy struct {
	Value int
	Unit  Unit
}

// Default is applied to groups created without an explicit policy.
var Default = Policy{Value: 1, Unit: UnitDay}

// Disabled reports whether the policy never blocks a praise.
func (p Policy) Disabled() bool {
	return p.Unit == UnitNone
}

// Window returns Value * Unit.
func (p Policy) Window() time.Duration {
	if p.Disabled() {
		return 0
	}
	return time.Duration(p.Value) * p.Unit.Duration()
}

// MaxValue is the largest Value whose window still fits in a time.Duration
// (about 292 years).
func (u Unit) MaxValue() int {
	d := u.Duration()
	if d <= 0 {
		return math.MaxInt
	}
	return int(math.MaxInt64 / int64(d))
}

// Validate checks that the unit is known and that an active policy has a
// positive value whose window does not overflow.
func (p Policy) Validate() error {
	if _, ok := unitDurations[p.Unit]; !ok {
		return fmt.Errorf("unknown cooldown unit %q", string(p.Unit))
	}
	if p.Disabled() {
		if p.Value < 0 {
			return fmt.Errorf("cooldown value cannot be negative")
		}
		return nil
	}
	if p.Value < 1 {
		return fmt.Errorf("cooldown value must be at least 1 %s", p.Unit)
	}
	if limit := p.Unit.MaxValue(); p.Value > limit {
		return fmt.Errorf("cooldown value must be at most %d %s", limit, p.Unit)
	}
	return nil
}

func (p Policy) String() string {
	if p.Disabled() {
		return string(UnitNone)
	}
	return fmt.Sprintf("%d %s", p.Value, p.Unit)
}

// NextAllowedAt returns the earliest time a new praise is accepted after one
// recorded at last.
func (p Policy) NextAllowedAt(last time.Time) time.Time {
	return last.Add(p.Window())
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool

	// NextAllowedAt is set when Allowed is false.
	NextAllowedAt time.Time
}

// Evaluate decides whether a praise at now is admitted given the previous
// praise time for the same ordered pair. last is nil when the sender has
// never praised the receiver in the group.
func (p Policy) Evaluate(last *time.Time, now time.Time) Decision {
	if p.Disabled() || last == nil {
		return Decision{Allowed: true}
	}
	next := p.NextAllowedAt(*last)
	if !now.Before(next) {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, NextAllowedAt: next}
}

// Threshold is the latest previous praise time that still admits a praise
// at now. A stored last_praised_at after the threshold means the window is
// still open.
func (p Policy) Threshold(now time.Time) time.Time {
	return now.Add(-p.Window())
}

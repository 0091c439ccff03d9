package clock

import "time"

// Clocker abstracts time so callers can replace real time in tests.
type Clocker interface {
	Now() time.Time
}

// System reads the wall clock, converted to UTC so receipts and delivery
// rows do not depend on the host zone.
type System struct{}

func New() *System { return &System{} }

func (*System) Now() time.Time { return time.Now().UTC() }

// Fixed always reports the same instant.
type Fixed struct {
	At time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{At: t} }

func (f *Fixed) Now() time.Time { return f.At }

// Advance moves the pinned instant forward by d.
func (f *Fixed) Advance(d time.Duration) { f.At = f.At.Add(d) }

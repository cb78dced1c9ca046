package bench

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrRate = errors.New("bench: bad rate")

// Scheduler paces requests: Next returns the offset from the start of the
// run at which request n (counted from 0) is sent.
type Scheduler interface {
	Next(n int64) (at time.Duration, ok bool)
}

type CountLimiter struct {
	s     Scheduler
	limit int64
}

func NewCountLimiter(s Scheduler, limit int64) CountLimiter {
	return CountLimiter{s, limit}
}

func (cl CountLimiter) Next(n int64) (time.Duration, bool) {
	if n >= cl.limit {
		return 0, false
	}
	return cl.s.Next(n)
}

// A Constant sends a fixed number of requests per second.
type Constant struct {
	interval time.Duration
}

func NewConstant(rps uint64) (Constant, error) {
	if rps == 0 {
		return Constant{}, fmt.Errorf("%w: rps must be positive", ErrRate)
	}
	return Constant{time.Second / time.Duration(rps)}, nil
}

func (c Constant) Next(n int64) (time.Duration, bool) {
	return time.Duration(n) * c.interval, true
}

// Unlimited sends requests as fast as the clients manage.
type Unlimited struct{}

func (Unlimited) Next(int64) (time.Duration, bool) {
	return 0, true
}

// Line ramps the rate linearly from one rps to another over a duration.
type Line struct {
	b          float64
	twoA       float64
	bSquare    float64
	bilionDivA float64
}

func NewLine(from, to float64, d time.Duration) (Scheduler, error) {
	if from < 0 || to < 0 || d <= 0 {
		return nil, fmt.Errorf("%w: line %v..%v over %s", ErrRate, from, to, d)
	}
	if from == to {
		if from < 1 {
			return nil, fmt.Errorf("%w: rps must be positive", ErrRate)
		}
		return NewConstant(uint64(from))
	}

	a := (to - from) / d.Seconds()
	return Line{
		b:          from,
		twoA:       2 * a,
		bSquare:    from * from,
		bilionDivA: 1e9 / a,
	}, nil
}

// Next solves a/2*t^2 + b*t = n for t.
func (l Line) Next(n int64) (time.Duration, bool) {
	d := l.twoA*float64(n) + l.bSquare
	if d < 0 {
		// a falling rate reached zero
		return 0, false
	}
	return time.Duration((math.Sqrt(d) - l.b) * l.bilionDivA), true
}

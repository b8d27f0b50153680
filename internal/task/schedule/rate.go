package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidExpression is returned for any expression Normalize cannot convert.
var ErrInvalidExpression = errors.New("invalid schedule expression")

// Unit is the time unit of a rate expression.
type Unit int

const (
	UnitMinute Unit = iota
	UnitHour
	UnitDay
)

func (u Unit) String() string {
	switch u {
	case UnitMinute:
		return "minute"
	case UnitHour:
		return "hour"
	case UnitDay:
		return "day"
	default:
		return "unknown"
	}
}

// Rate is a parsed "rate(<n> <unit>)" expression.
type Rate struct {
	Every int
	Unit  Unit
}

// Cron renders the rate as a canonical schedule: "*/n" in the field of the unit,
// "*" everywhere else.
func (r Rate) Cron() string {
	fields := [5]string{"*", "*", "*", "*", "*"}
	fields[r.Unit] = "*/" + strconv.Itoa(r.Every)
	return strings.Join(fields[:], " ")
}

var reRate = regexp.MustCompile(`^rate\(\s*(\S+)\s+(\S+)\s*\)$`)

var units = map[string]Unit{
	"minute":  UnitMinute,
	"minutes": UnitMinute,
	"hour":    UnitHour,
	"hours":   UnitHour,
	"day":     UnitDay,
	"days":    UnitDay,
}

// ParseRate parses a rate expression such as "rate(5 minutes)".
func ParseRate(expr string) (Rate, error) {
	s := strings.TrimSpace(expr)
	m := reRate.FindStringSubmatch(s)
	if m == nil {
		return Rate{}, fmt.Errorf("%w: %q (expected rate(<n> <unit>))", ErrInvalidExpression, expr)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return Rate{}, fmt.Errorf("%w: %q (rate value must be a positive integer)", ErrInvalidExpression, expr)
	}
	u, ok := units[m[2]]
	if !ok {
		return Rate{}, fmt.Errorf("%w: %q (unit must be minute(s), hour(s) or day(s))", ErrInvalidExpression, expr)
	}
	return Rate{Every: n, Unit: u}, nil
}

// Normalize converts an interval expression into a canonical cron schedule.
//
//	rate(1 minute)  -> */1 * * * *
//	rate(2 hours)   -> * */2 * * *
//	rate(3 days)    -> * * */3 * *
func Normalize(expr string) (string, error) {
	r, err := ParseRate(expr)
	if err != nil {
		return "", err
	}
	c := r.Cron()
	// Never hand the timer runtime a spec it would refuse at registration.
	if err := Validate(c); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}
	return c, nil
}

// Validate reports whether spec is a valid standard 5-field cron schedule.
func Validate(spec string) error {
	_, err := cron.ParseStandard(spec)
	return err
}

// NextN returns the next n activation times of spec after from, in from's location.
func NextN(spec string, from time.Time, n int) ([]time.Time, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	t := from
	for len(out) < n {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidExpr is returned when a schedule expression cannot be parsed.
var ErrInvalidExpr = errors.New("invalid schedule expression")

// Expr is a parsed schedule expression that yields fire times.
type Expr interface {
	// Next returns the next fire time strictly after t.
	Next(t time.Time) time.Time
}

type rateExpr struct {
	every time.Duration
}

func (r rateExpr) Next(t time.Time) time.Time {
	return t.Add(r.every)
}

// ParseExpr parses a registry schedule expression. Two forms are supported:
// "cron(<5-field expression>)" and "rate(<n> minutes|hours|days)".
func ParseExpr(expr string) (Expr, error) {
	switch {
	case strings.HasPrefix(expr, "cron(") && strings.HasSuffix(expr, ")"):
		return parseCron(expr[len("cron(") : len(expr)-1])
	case strings.HasPrefix(expr, "rate(") && strings.HasSuffix(expr, ")"):
		return parseRate(expr[len("rate(") : len(expr)-1])
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidExpr, expr)
	}
}

func parseCron(spec string) (Expr, error) {
	// "?" is a common day-of-month/day-of-week wildcard in other schedulers;
	// accept it as "*".
	spec = strings.ReplaceAll(spec, "?", "*")

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	parsed, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExpr, err)
	}

	return parsed, nil
}

func parseRate(spec string) (Expr, error) {
	var (
		value int
		unit  string
	)

	_, err := fmt.Sscanf(spec, "%d %s", &value, &unit)
	if err != nil || value <= 0 {
		return nil, fmt.Errorf("%w: rate(%s)", ErrInvalidExpr, spec)
	}

	switch strings.TrimSuffix(unit, "s") {
	case "minute":
		return rateExpr{every: time.Duration(value) * time.Minute}, nil
	case "hour":
		return rateExpr{every: time.Duration(value) * time.Hour}, nil
	case "day":
		return rateExpr{every: time.Duration(value) * 24 * time.Hour}, nil
	default:
		return nil, fmt.Errorf("%w: rate(%s)", ErrInvalidExpr, spec)
	}
}

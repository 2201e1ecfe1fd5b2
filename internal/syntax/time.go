package syntax

import (
	"fmt"
	"strconv"
	"strings"

	"svelab/internal/source"
)

// TimeUnit is a power-of-ten exponent of seconds: 0 = s, -3 = ms, ... -15 = fs.
type TimeUnit int8

const (
	UnitS  TimeUnit = 0
	UnitMS TimeUnit = -3
	UnitUS TimeUnit = -6
	UnitNS TimeUnit = -9
	UnitPS TimeUnit = -12
	UnitFS TimeUnit = -15
)

func (u TimeUnit) String() string {
	switch u {
	case UnitS:
		return "s"
	case UnitMS:
		return "ms"
	case UnitUS:
		return "us"
	case UnitNS:
		return "ns"
	case UnitPS:
		return "ps"
	case UnitFS:
		return "fs"
	}
	return "?"
}

// TimeValue is 1, 10 or 100 of some unit.
type TimeValue struct {
	Magnitude uint8
	Unit      TimeUnit
}

// Exponent returns log10 of the value in seconds.
func (v TimeValue) Exponent() int {
	e := int(v.Unit)
	switch v.Magnitude {
	case 10:
		e++
	case 100:
		e += 2
	}
	return e
}

func (v TimeValue) String() string {
	return fmt.Sprintf("%d%s", v.Magnitude, v.Unit)
}

// TimeLiteral is a parsed time value together with its location.
type TimeLiteral struct {
	Value TimeValue
	Span  source.Span
}

// ParseTimeValue accepts "1ns", "10 ps", "100us".
func ParseTimeValue(text string) (TimeValue, error) {
	t := strings.TrimSpace(text)
	i := 0
	for i < len(t) && t[i] >= '0' && t[i] <= '9' {
		i++
	}
	mag, err := strconv.Atoi(t[:i])
	if err != nil || (mag != 1 && mag != 10 && mag != 100) {
		return TimeValue{}, fmt.Errorf("time magnitude must be 1, 10 or 100: %q", text)
	}
	var unit TimeUnit
	switch strings.TrimSpace(t[i:]) {
	case "s":
		unit = UnitS
	case "ms":
		unit = UnitMS
	case "us":
		unit = UnitUS
	case "ns":
		unit = UnitNS
	case "ps":
		unit = UnitPS
	case "fs":
		unit = UnitFS
	default:
		return TimeValue{}, fmt.Errorf("unknown time unit in %q", text)
	}
	return TimeValue{Magnitude: uint8(mag), Unit: unit}, nil // #nosec G115 -- mag is 1, 10 or 100
}

// Timescale is a `timescale directive value.
type Timescale struct {
	Unit      TimeValue
	Precision TimeValue
}

func (ts Timescale) String() string {
	return ts.Unit.String() + "/" + ts.Precision.String()
}

// ParseTimescale accepts "1ns/1ps".
func ParseTimescale(text string) (Timescale, error) {
	u, p, ok := strings.Cut(text, "/")
	if !ok {
		return Timescale{}, fmt.Errorf("timescale must be unit/precision: %q", text)
	}
	unit, err := ParseTimeValue(u)
	if err != nil {
		return Timescale{}, err
	}
	prec, err := ParseTimeValue(p)
	if err != nil {
		return Timescale{}, err
	}
	return Timescale{Unit: unit, Precision: prec}, nil
}

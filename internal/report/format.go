package report

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"

	cephtools "github.com/ceph/ceph-tools"
)

// float64 cannot tell more nines apart
const maxNines = 17

// whole truncates x, forgiving the rounding of unit conversions.
func whole(x float64) int {
	return int(math.Floor(x + 1e-9))
}

// Size renders bytes with decimal prefixes.
func Size(bytes float64) string {
	return humanize.Bytes(uint64(bytes))
}

// BinarySize renders bytes with binary prefixes.
func BinarySize(bytes float64) string {
	return humanize.IBytes(uint64(bytes))
}

// Time renders hours in the largest unit that keeps the number readable.
func Time(t float64) string {
	switch {
	case t < 2*cephtools.Minute:
		return fmt.Sprintf("%d seconds", whole(t/cephtools.Second))
	case t < 5*cephtools.Hour:
		return fmt.Sprintf("%d minutes", whole(t/cephtools.Minute))
	case t < 3*cephtools.Day:
		return fmt.Sprintf("%d hours", whole(t/cephtools.Hour))
	case t < cephtools.Year:
		return fmt.Sprintf("%d days", whole(t/cephtools.Day))
	case math.Mod(t, cephtools.Year) == 0:
		return fmt.Sprintf("%d years", whole(t/cephtools.Year))
	}
	return fmt.Sprintf("%5.1f years", t/cephtools.Year)
}

// Durability renders a percentage, or a count of nines once the percentage
// stops being readable.
func Durability(d float64) string {
	if d < .99999 {
		return fmt.Sprintf("%6.3f%%", d*100)
	}

	nines := 0
	for d > .9 && nines < maxNines {
		nines++
		d -= .9
		d *= 10
	}
	return fmt.Sprintf("%d-nines", nines)
}

func Probability(p float64) string {
	if p > .0000001 {
		return fmt.Sprintf("%9.6f%%", p*100)
	}
	return fmt.Sprintf("%9.3e", p)
}

func Float(f float64) string {
	return fmt.Sprintf("%9.3e", f)
}

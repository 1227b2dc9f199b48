package primitives

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	cephtools "github.com/ceph/ceph-tools"
)

// FIT rates are expressed in failures per billion device-hours
const billion = 1e9

// FitRate returns the FIT rate of events occurring once every period hours.
func FitRate(events, period float64) float64 {
	return events * billion / period
}

// MTTF returns the mean time to failure, in hours, for a FIT rate.
func MTTF(fits float64) (float64, error) {
	if fits == 0 {
		return 0, cephtools.ErrUndefinedRate
	}
	return billion / fits, nil
}

// Expected returns the number of failures expected during hours.
func Expected(fits, hours float64) float64 {
	return fits * hours / billion
}

// Pfail is the Poisson probability of exactly n failures during hours for a
// unit with the given FIT rate.
func Pfail(fits, hours float64, n int) float64 {
	return Pn(Expected(fits, hours), n)
}

// Pn is the Poisson probability of exactly n events when expected are
// expected.
func Pn(expected float64, n int) float64 {
	if expected == 0 {
		if n == 0 {
			return 1
		}
		return 0
	}
	return distuv.Poisson{Lambda: expected}.Prob(float64(n))
}

// PAtLeastOne is the probability of one or more failures during hours,
// 1 - Pfail(fits, hours, 0), kept accurate for tiny exposures.
func PAtLeastOne(fits, hours float64) float64 {
	return -math.Expm1(-Expected(fits, hours))
}

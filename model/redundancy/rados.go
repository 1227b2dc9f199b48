package redundancy

import (
	"fmt"
	"log/slog"
	"math"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/model/primitives"
)

// RADOSConfig holds the parameters of a replicated placement group.
type RADOSConfig struct {
	// PGs is the number of placement groups per OSD (declustering)
	PGs    int
	Copies int
	// RecoverySpeed is the recovery rate of one OSD, in bytes per second
	RecoverySpeed float64
	// MarkoutDelay is the number of hours before a down OSD is marked out
	MarkoutDelay float64
	// Fullness is the used fraction of every drive
	Fullness   float64
	ObjectSize float64
	// StripeLength is the number of objects a striped object spans
	StripeLength int
	NRE          cephtools.NREPolicy
}

// DefaultRADOSConfig is two copies spread over 200 placement groups per OSD.
func DefaultRADOSConfig() RADOSConfig {
	return RADOSConfig{
		PGs:           200,
		Copies:        2,
		RecoverySpeed: 50 * cephtools.MiB,
		MarkoutDelay:  10 * cephtools.Minute,
		Fullness:      0.75,
		ObjectSize:    1 * cephtools.GiB,
		StripeLength:  1,
		NRE:           cephtools.NREIgnore,
	}
}

// RADOS models a placement group replicated over declustered OSDs. The
// modeled unit is a placement group.
type RADOS struct {
	disk     *primitives.Disk
	pgs      int
	copies   int
	speed    float64
	delay    float64
	fullness float64
	objsize  float64
	stripe   int
	nre      cephtools.NREPolicy
}

// NewRADOS validates cfg and returns the placement group model built on disk.
func NewRADOS(disk *primitives.Disk, cfg RADOSConfig) (*RADOS, error) {
	switch {
	case disk == nil:
		return nil, cephtools.ConfigError("rados", "disk", "a disk is required")
	case cfg.Copies < 1:
		return nil, cephtools.ConfigError("rados", "copies", "at least one copy is required, got %d", cfg.Copies)
	case cfg.PGs < 1:
		return nil, cephtools.ConfigError("rados", "decluster", "at least one placement group per OSD is required, got %d", cfg.PGs)
	case cfg.Fullness < 0 || cfg.Fullness > 1:
		return nil, cephtools.ConfigError("rados", "fullness", "must be within [0, 1], got %g", cfg.Fullness)
	case cfg.StripeLength < 1:
		return nil, cephtools.ConfigError("rados", "stripe_length", "must be at least 1, got %d", cfg.StripeLength)
	case cfg.Copies > 1 && cfg.RecoverySpeed <= 0:
		return nil, cephtools.ConfigError("rados", "recover", "recovery speed must be positive, got %g", cfg.RecoverySpeed)
	}
	if err := cephtools.CheckNonNegative("rados", "markout", cfg.MarkoutDelay); err != nil {
		return nil, err
	}
	if err := cephtools.CheckNonNegative("rados", "object_size", cfg.ObjectSize); err != nil {
		return nil, err
	}

	slog.Debug("rados placement group configured", "copies", cfg.Copies, "pgs", cfg.PGs, "stripe_length", cfg.StripeLength)

	return &RADOS{
		disk:     disk,
		pgs:      cfg.PGs,
		copies:   cfg.Copies,
		speed:    cfg.RecoverySpeed,
		delay:    cfg.MarkoutDelay,
		fullness: cfg.Fullness,
		objsize:  cfg.ObjectSize,
		stripe:   cfg.StripeLength,
		nre:      cfg.NRE,
	}, nil
}

func (r *RADOS) Kind() cephtools.Kind { return cephtools.KindRADOS }

func (r *RADOS) Description() string { return fmt.Sprintf("RADOS: %d cp", r.copies) }

func (r *RADOS) Disk() *primitives.Disk { return r.disk }

func (r *RADOS) PGs() int { return r.pgs }

func (r *RADOS) Copies() int { return r.copies }

func (r *RADOS) RecoverySpeed() float64 { return r.speed }

func (r *RADOS) MarkoutDelay() float64 { return r.delay }

func (r *RADOS) Fullness() float64 { return r.fullness }

func (r *RADOS) ObjectSize() float64 { return r.objsize }

func (r *RADOS) StripeLength() int { return r.stripe }

func (r *RADOS) NREPolicy() cephtools.NREPolicy { return r.nre }

// Size is the useful capacity of one copy.
func (r *RADOS) Size() float64 { return r.disk.Size() }

// StoredBytes is the amount of data held by one drive.
func (r *RADOS) StoredBytes() float64 { return r.disk.Size() * r.fullness }

// RebuildTime is the number of hours needed to recover a failed drive at
// speed bytes per second. Every placement group recovers in parallel.
func (r *RADOS) RebuildTime(speed float64) float64 {
	return cephtools.TransferTime(r.StoredBytes(), speed*float64(r.pgs))
}

// LossFraction is the share of a drive lost when its last copy goes away.
// With perfect declustering, a second failure only takes half of a
// placement group with it.
func (r *RADOS) LossFraction(sites int) float64 {
	if r.copies == 1 && sites <= 1 {
		return 1.0
	}
	return 1.0 / (2 * float64(r.pgs))
}

// Compute returns the probability of losing an object of the placement
// group during period. mult scales the exposure of the first failure.
func (r *RADOS) Compute(period, mult float64) cephtools.Result {
	initial := r.disk.Compute(period, mult*float64(r.copies*r.stripe))
	pDrive, pNRE := initial.PDrive, initial.PDrive

	// every other copy has to fail before recovery completes. The NRE
	// precursor stops one step short: reading the last copy is what fails.
	window := r.delay + r.RebuildTime(r.speed)
	for remaining := r.copies - 1; remaining > 0; remaining-- {
		p := r.disk.ComputeSecondary(window, float64(remaining*r.pgs)).PDrive
		pDrive *= p
		if remaining > 1 {
			pNRE *= p
		}
	}

	stored := r.StoredBytes()
	fraction := r.LossFraction(1)

	result := cephtools.Result{
		PDrive:     pDrive,
		LDrive:     stored * fraction,
		Durability: 1.0 - pDrive*fraction,
		RawSize:    r.disk.Size() * float64(r.copies),
	}

	if r.nre == cephtools.NREIgnore {
		return result
	}

	readBytes := stored
	writeBytes := 0.0
	if r.copies > 1 {
		writeBytes = readBytes
	}
	result.PNRE = pNRE * r.disk.PNRE(readBytes+writeBytes)
	result.LNRE = math.Min(r.objsize, stored*fraction)
	if stored > 0 {
		result.Durability -= result.PNRE * result.LNRE / stored
	}

	return result
}

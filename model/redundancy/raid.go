package redundancy

import (
	"fmt"
	"log/slog"
	"strings"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/model/primitives"
)

// Level is a RAID layout.
type Level int

const (
	RAID0 Level = iota
	RAID1
	RAID5
	RAID6
)

func (l Level) String() string {
	switch l {
	case RAID0:
		return "RAID-0"
	case RAID1:
		return "RAID-1"
	case RAID5:
		return "RAID-5"
	case RAID6:
		return "RAID-6"
	}
	return fmt.Sprintf("RAID(%d)", int(l))
}

// parity is the number of volumes holding parity for the level.
func (l Level) parity() int {
	switch l {
	case RAID5:
		return 1
	case RAID6:
		return 2
	}
	return 0
}

// ParseLevel accepts "RAID-1", "raid1" or plain "1".
func ParseLevel(name string) (Level, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	normalized = strings.TrimPrefix(normalized, "RAID")
	normalized = strings.TrimPrefix(normalized, "-")
	switch normalized {
	case "0":
		return RAID0, nil
	case "1":
		return RAID1, nil
	case "5":
		return RAID5, nil
	case "6":
		return RAID6, nil
	}
	return RAID0, cephtools.ConfigError("raid", "type", "unknown RAID level %q", name)
}

// RAIDConfig holds the parameters of a RAID set.
type RAIDConfig struct {
	Level Level
	// Volumes is the total number of drives in the set, parity included
	Volumes int
	// RecoverySpeed is the rebuild rate in bytes per second
	RecoverySpeed float64
	// Delay is the number of hours before a rebuild starts
	Delay float64
	NRE   cephtools.NREPolicy
	// ObjectSize is the damage done by a single NRE under the error policy
	ObjectSize float64
}

const (
	defaultRAIDDelay      = 6 * cephtools.Hour
	defaultRAIDRecovery   = 50 * cephtools.MiB
	defaultRAIDObjectSize = 1 * cephtools.GiB
)

// DefaultRAIDConfig returns the usual configuration of a level.
func DefaultRAIDConfig(level Level) RAIDConfig {
	cfg := RAIDConfig{
		Level:         level,
		RecoverySpeed: defaultRAIDRecovery,
		Delay:         defaultRAIDDelay,
		NRE:           cephtools.NREFail,
		ObjectSize:    defaultRAIDObjectSize,
	}

	switch level {
	case RAID0:
		cfg.Volumes = 2
		cfg.RecoverySpeed = 0
		cfg.Delay = 0
	case RAID1:
		cfg.Volumes = 2
	case RAID5:
		cfg.Volumes = 4
		cfg.RecoverySpeed = defaultRAIDRecovery / 3
	case RAID6:
		cfg.Volumes = 8
		cfg.RecoverySpeed = defaultRAIDRecovery / 6
	}

	return cfg
}

// RAID models a redundancy group of identical drives. The modeled unit is a
// RAID set.
type RAID struct {
	disk        *primitives.Disk
	level       Level
	volumes     int
	parity      int
	copies      int
	speed       float64
	delay       float64
	nre         cephtools.NREPolicy
	objsize     float64
	size        float64
	rawSize     float64
	description string
}

// NewRAID validates cfg and returns the RAID set model built on disk.
func NewRAID(disk *primitives.Disk, cfg RAIDConfig) (*RAID, error) {
	if disk == nil {
		return nil, cephtools.ConfigError("raid", "disk", "a disk is required")
	}
	if cfg.Volumes < 1 {
		return nil, cephtools.ConfigError("raid", "volumes", "at least one volume is required, got %d", cfg.Volumes)
	}
	if err := cephtools.CheckNonNegative("raid", "delay", cfg.Delay); err != nil {
		return nil, err
	}
	if err := cephtools.CheckNonNegative("raid", "recovery", cfg.RecoverySpeed); err != nil {
		return nil, err
	}
	if err := cephtools.CheckNonNegative("raid", "object_size", cfg.ObjectSize); err != nil {
		return nil, err
	}

	r := &RAID{
		disk:    disk,
		level:   cfg.Level,
		volumes: cfg.Volumes,
		parity:  cfg.Level.parity(),
		copies:  1,
		speed:   cfg.RecoverySpeed,
		delay:   cfg.Delay,
		nre:     cfg.NRE,
		objsize: cfg.ObjectSize,
		rawSize: disk.Size() * float64(cfg.Volumes),
	}

	if r.parity >= r.volumes {
		return nil, cephtools.ConfigError("raid", "volumes", "%s needs more than %d volumes, got %d", cfg.Level, r.parity, r.volumes)
	}

	switch cfg.Level {
	case RAID0:
		r.size = disk.Size() * float64(r.volumes)
		r.description = fmt.Sprintf("RAID-0: %d vol", r.volumes)
	case RAID1:
		r.copies = r.volumes
		r.size = disk.Size()
		r.description = fmt.Sprintf("RAID-1: %d cp", r.volumes)
	case RAID5, RAID6:
		r.size = disk.Size() * float64(r.volumes-r.parity)
		r.description = fmt.Sprintf("%s: %d+%d", cfg.Level, r.volumes-r.parity, r.parity)
	default:
		return nil, cephtools.ConfigError("raid", "type", "unknown RAID level %d", int(cfg.Level))
	}

	if r.tolerant() && r.speed <= 0 {
		return nil, cephtools.ConfigError("raid", "recovery", "%s rebuilds need a positive recovery speed", cfg.Level)
	}

	slog.Debug("raid set configured", "description", r.description, "rebuild_hours", r.RebuildTime())
	return r, nil
}

func (r *RAID) Kind() cephtools.Kind { return cephtools.KindRAID }

func (r *RAID) Description() string { return r.description }

func (r *RAID) Disk() *primitives.Disk { return r.disk }

func (r *RAID) Level() Level { return r.level }

func (r *RAID) Volumes() int { return r.volumes }

func (r *RAID) RecoverySpeed() float64 { return r.speed }

func (r *RAID) Delay() float64 { return r.delay }

func (r *RAID) NREPolicy() cephtools.NREPolicy { return r.nre }

func (r *RAID) ObjectSize() float64 { return r.objsize }

// Size is the usable capacity of the set.
func (r *RAID) Size() float64 { return r.size }

// RebuildTime is the number of hours needed to rebuild one drive.
func (r *RAID) RebuildTime() float64 {
	return cephtools.TransferTime(r.disk.Size(), r.speed)
}

// required is the number of drives needed to keep serving data.
func (r *RAID) required() int {
	switch {
	case r.parity > 0:
		return r.volumes - r.parity
	case r.copies > 1:
		return 1
	}
	return r.volumes
}

// tolerant tells whether the set survives the loss of a single drive.
func (r *RAID) tolerant() bool {
	return r.volumes-1 >= r.required()
}

// Compute returns the probability of losing the set during period. mult
// scales the exposure of the first failure.
func (r *RAID) Compute(period, mult float64) cephtools.Result {
	initial := r.disk.Compute(period, mult*float64(r.volumes))

	var pDrive, lDrive, pNRE float64
	if r.tolerant() {
		survivors, required := r.volumes-1, r.required()
		window := r.delay + r.RebuildTime()

		// every further failure has to happen before the rebuild completes
		p := initial.PDrive
		for ; survivors > required; survivors-- {
			p *= r.disk.ComputeSecondary(window, float64(survivors)).PDrive
		}
		last := r.disk.ComputeSecondary(window, float64(survivors))

		pDrive = p * last.PDrive
		lDrive = r.size

		// read the required survivors, write the replacement
		readBytes := r.disk.Size() * float64(required)
		writeBytes := r.disk.Size()
		pNRE = p * r.disk.PNRE(readBytes+writeBytes)
	} else {
		pDrive = initial.PDrive
		lDrive = initial.LDrive
		pNRE = initial.PNRE
	}

	lNRE := r.size
	switch r.nre {
	case cephtools.NREIgnore:
		pNRE, lNRE = 0, 0
	case cephtools.NREError:
		lNRE = r.objsize
	case cephtools.NREErrorFailHalf:
		lNRE = (r.size + r.objsize) / 2
	}

	return cephtools.Result{
		PDrive:     pDrive,
		LDrive:     lDrive,
		PNRE:       pNRE,
		LNRE:       lNRE,
		Durability: 1.0 - (pDrive + pNRE),
		RawSize:    r.rawSize,
	}
}

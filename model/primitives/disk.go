package primitives

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	cephtools "github.com/ceph/ceph-tools"
)

// DefaultDiskSize is the size used by the presets when none is given.
const DefaultDiskSize = 2 * cephtools.TiB

// DiskConfig holds the structural parameters of a drive.
type DiskConfig struct {
	// Size in bytes
	Size float64
	// FITs is the primary failure rate
	FITs float64
	// SecondaryFITs is the failure rate of a drive already under recovery
	// stress. Zero means FITs.
	SecondaryFITs float64
	// NRE is the non-recoverable error rate per bit read
	NRE float64
	// Description for reports
	Description string
}

// Disk models a single drive. The modeled unit is one drive.
type Disk struct {
	size        float64
	fits        float64
	fits2       float64
	nre         float64
	description string
}

// NewDisk validates cfg and returns the drive model.
func NewDisk(cfg DiskConfig) (*Disk, error) {
	for field, value := range map[string]float64{
		"size": cfg.Size, "fits": cfg.FITs, "fits2": cfg.SecondaryFITs, "nre": cfg.NRE,
	} {
		if err := cephtools.CheckNonNegative("disk", field, value); err != nil {
			return nil, err
		}
	}

	fits2 := cfg.SecondaryFITs
	if fits2 == 0 {
		fits2 = cfg.FITs
	}

	description := cfg.Description
	if description == "" {
		description = "Disk"
	}

	return &Disk{
		size:        cfg.Size,
		fits:        cfg.FITs,
		fits2:       fits2,
		nre:         cfg.NRE,
		description: description,
	}, nil
}

func (d *Disk) Kind() cephtools.Kind { return cephtools.KindDisk }

func (d *Disk) Description() string { return d.description }

// Size in bytes.
func (d *Disk) Size() float64 { return d.size }

func (d *Disk) FITs() float64 { return d.fits }

func (d *Disk) SecondaryFITs() float64 { return d.fits2 }

func (d *Disk) NRE() float64 { return d.nre }

// Compute returns the probability of losing this drive (or any of mult
// drives like it) during period, and of hitting an NRE while reading it.
func (d *Disk) Compute(period, mult float64) cephtools.Result {
	return d.compute(d.fits, period, mult)
}

// ComputeSecondary is Compute using the secondary FIT rate. Redundant models
// use it for further failures during a recovery window.
func (d *Disk) ComputeSecondary(period, mult float64) cephtools.Result {
	return d.compute(d.fits2, period, mult)
}

func (d *Disk) compute(fits, period, mult float64) cephtools.Result {
	pDrive := PAtLeastOne(fits*mult, period)
	pNRE := d.PNRE(d.size)
	return cephtools.Result{
		PDrive:     pDrive,
		LDrive:     d.size,
		PNRE:       pNRE,
		LNRE:       d.size,
		Durability: 1.0 - (pDrive + pNRE),
		RawSize:    d.size,
	}
}

// PNRE is the probability of a non-recoverable error while transferring
// bytes to or from this drive.
func (d *Disk) PNRE(bytes float64) float64 {
	return Pn(d.nre*bytes*8, 1)
}

// DiskPreset is a named drive specification.
type DiskPreset struct {
	Name        string
	FITs        float64
	NRE         float64
	Description string
}

var diskPresets = []DiskPreset{
	// spec'd enterprise drive
	{Name: "Enterprise", FITs: 826, NRE: 1.0e-15, Description: "Enterprise drive"},
	// spec'd consumer drive
	{Name: "Consumer", FITs: 1320, NRE: 1.0e-14, Description: "Consumer drive"},
	// Schroeder & Gibson, FAST 2007
	{Name: "Real-world", FITs: 7800, NRE: 1.0e-14, Description: "real-world disk"},
}

// DiskPresets lists the known drive specifications.
func DiskPresets() []DiskPreset {
	return append([]DiskPreset(nil), diskPresets...)
}

// LookupDiskPreset fuzzy finds the preset closest to name.
func LookupDiskPreset(name string) (DiskPreset, bool) {
	names := make([]string, len(diskPresets))
	for i, preset := range diskPresets {
		names[i] = preset.Name
	}

	ranks := fuzzy.RankFindNormalizedFold(name, names)
	if len(ranks) == 0 {
		slog.Debug("no disk preset matches", "name", name)
		return DiskPreset{}, false
	}
	sort.Sort(ranks)

	slog.Debug("fuzzy found a disk preset", "source", name, "found", ranks[0].Target, "distance", ranks[0].Distance)
	return diskPresets[ranks[0].OriginalIndex], true
}

// NewPresetDisk builds a drive of the given size from a preset.
func NewPresetDisk(preset DiskPreset, size float64) (*Disk, error) {
	if size == 0 {
		size = DefaultDiskSize
	}
	return NewDisk(DiskConfig{
		Size:        size,
		FITs:        preset.FITs,
		NRE:         preset.NRE,
		Description: fmt.Sprintf("Disk: %s", preset.Name),
	})
}

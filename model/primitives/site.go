package primitives

import (
	"fmt"

	"github.com/dustin/go-humanize"

	cephtools "github.com/ceph/ceph-tools"
)

// SiteConfig holds the parameters of a whole site.
type SiteConfig struct {
	// DisasterFITs is the rate of force-majeure events destroying the site
	DisasterFITs float64
	// ReplacementTime is the number of hours needed to bring a destroyed
	// site back. Zero means never.
	ReplacementTime float64
	// Size of the data stored at the site, in bytes
	Size float64
}

// DefaultSiteConfig is one disaster per thousand years, thirty days to
// rebuild a site holding a petabyte.
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		DisasterFITs:    FitRate(.001, cephtools.Year),
		ReplacementTime: 30 * cephtools.Day,
		Size:            1 * cephtools.PiB,
	}
}

// Site models catastrophic loss of a whole site, independently of the way
// data is stored inside it.
type Site struct {
	fits    float64
	replace float64
	size    float64
}

func NewSite(cfg SiteConfig) (*Site, error) {
	if err := cephtools.CheckNonNegative("site", "fits", cfg.DisasterFITs); err != nil {
		return nil, err
	}
	if err := cephtools.CheckNonNegative("site", "replacement_time", cfg.ReplacementTime); err != nil {
		return nil, err
	}
	if err := cephtools.CheckNonNegative("site", "size", cfg.Size); err != nil {
		return nil, err
	}
	return &Site{fits: cfg.DisasterFITs, replace: cfg.ReplacementTime, size: cfg.Size}, nil
}

func (s *Site) Kind() cephtools.Kind { return cephtools.KindSite }

func (s *Site) Description() string {
	return fmt.Sprintf("Site (%s)", humanize.Bytes(uint64(s.size)))
}

func (s *Site) DisasterFITs() float64 { return s.fits }

func (s *Site) ReplacementTime() float64 { return s.replace }

func (s *Site) Size() float64 { return s.size }

// Compute returns the probability of losing the site (or any of mult sites)
// during period.
func (s *Site) Compute(period, mult float64) cephtools.Result {
	pSite := PAtLeastOne(s.fits*mult, period)
	return cephtools.Result{
		PSite:      pSite,
		LSite:      s.size,
		Durability: 1.0 - pSite,
		RawSize:    s.size,
	}
}

// Availability is the long-run fraction of time the site is reachable.
func (s *Site) Availability() float64 {
	if s.fits == 0 {
		return 1.0
	}
	if s.replace == 0 {
		// never repaired: degraded for the rest of the year
		return Pfail(s.fits, cephtools.Year, 0)
	}
	mttf, _ := MTTF(s.fits)
	return mttf / (mttf + s.replace)
}

// Package multisite models placement groups replicated across several sites,
// each of which can be lost to a disaster, to drive failures or to a read
// error during recovery.
package multisite

import (
	"fmt"
	"log/slog"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/internal/must"
	"github.com/ceph/ceph-tools/model/primitives"
	"github.com/ceph/ceph-tools/model/redundancy"
)

// MaxSites bounds the failure tree, which has 3^(sites-1) leaves.
const MaxSites = 8

// Config holds the cross-site replication parameters.
type Config struct {
	// ReplicationSpeed is the cross-site recovery rate in bytes per second
	ReplicationSpeed float64
	// ReplicationLatency is the number of hours a write waits before being
	// replicated. Zero means synchronous replication.
	ReplicationLatency float64
	Sites              int
}

func DefaultConfig() Config {
	return Config{
		ReplicationSpeed: 10 * cephtools.MiB,
		Sites:            1,
	}
}

// Counts tallies what took out the sites already lost on a tree path.
type Counts struct {
	Sites  int
	Copies int
	NREs   int
}

// Total is the number of sites lost.
func (c Counts) Total() int { return c.Sites + c.Copies + c.NREs }

// Branch is a leaf of the failure tree: the last surviving site must hold
// during Period, which is reached with Probability.
type Branch struct {
	Counts      Counts
	Probability float64
	Period      float64
	// Exposure multiplies the leaf's own failure rates. It is only
	// different from one when the root is the leaf.
	Exposure float64
}

// Group models the same placement group replicated on several sites.
type Group struct {
	rados   *redundancy.RADOS
	site    *primitives.Site
	speed   float64
	latency float64
	sites   int
}

func NewGroup(rados *redundancy.RADOS, site *primitives.Site, cfg Config) (*Group, error) {
	switch {
	case rados == nil:
		return nil, cephtools.ConfigError("multisite", "rados", "a placement group model is required")
	case site == nil:
		return nil, cephtools.ConfigError("multisite", "site", "a site model is required")
	case cfg.Sites < 1 || cfg.Sites > MaxSites:
		return nil, cephtools.ConfigError("multisite", "sites", "must be within [1, %d], got %d", MaxSites, cfg.Sites)
	case cfg.Sites > 1 && cfg.ReplicationSpeed <= 0:
		return nil, cephtools.ConfigError("multisite", "recover", "replication speed must be positive, got %g", cfg.ReplicationSpeed)
	}
	if err := cephtools.CheckNonNegative("multisite", "recover", cfg.ReplicationSpeed); err != nil {
		return nil, err
	}
	if err := cephtools.CheckNonNegative("multisite", "latency", cfg.ReplicationLatency); err != nil {
		return nil, err
	}

	return &Group{
		rados:   rados,
		site:    site,
		speed:   cfg.ReplicationSpeed,
		latency: cfg.ReplicationLatency,
		sites:   cfg.Sites,
	}, nil
}

func (g *Group) Kind() cephtools.Kind { return cephtools.KindMultiSite }

func (g *Group) Description() string {
	return fmt.Sprintf("RADOS: %d-site, %d-cp", g.sites, g.rados.Copies())
}

func (g *Group) RADOS() *redundancy.RADOS { return g.rados }

func (g *Group) Site() *primitives.Site { return g.site }

func (g *Group) Sites() int { return g.sites }

func (g *Group) ReplicationSpeed() float64 { return g.speed }

func (g *Group) ReplicationLatency() float64 { return g.latency }

// Branches walks the failure tree for period and returns its leaves.
func (g *Group) Branches(period float64) []Branch {
	return g.branches(period, 1)
}

func (g *Group) branches(period, mult float64) []Branch {
	leaves := make([]Branch, 0, pow3(g.sites-1))
	leaves = g.descend(leaves, period, mult, 1.0, Counts{}, g.sites)
	slog.Debug("multi-site failure tree walked", "sites", g.sites, "leaves", len(leaves))
	return leaves
}

// descend appends to leaves every outcome of losing one more of survivors
// sites during period. Only the root carries the caller's multiplier.
func (g *Group) descend(leaves []Branch, period, mult, p float64, counts Counts, survivors int) []Branch {
	must.Assert(survivors >= 1, "multi-site tree descended below the last site")

	if survivors == 1 {
		return append(leaves, Branch{Counts: counts, Probability: p, Period: period, Exposure: mult})
	}

	site := g.site.Compute(period, float64(survivors)*mult)
	rados := g.rados.Compute(period, mult)

	lost := counts
	lost.Sites++
	leaves = g.descend(leaves, g.site.ReplacementTime(), 1, p*site.PSite, lost, survivors-1)

	lost = counts
	lost.Copies++
	leaves = g.descend(leaves, g.rados.RebuildTime(g.speed), 1, p*rados.PDrive, lost, survivors-1)

	lost = counts
	lost.NREs++
	fetch := cephtools.TransferTime(g.rados.ObjectSize(), g.speed)
	return g.descend(leaves, fetch, 1, p*rados.PNRE, lost, survivors-1)
}

// Compute returns the probability of losing an object replicated on every
// site during period.
func (g *Group) Compute(period, mult float64) cephtools.Result {
	var pSite, pDrive, pNRE, lNRE float64

	for _, leaf := range g.branches(period, mult) {
		// some other site still holds a copy
		if leaf.Counts.Sites+leaf.Counts.Copies != g.sites-1 {
			continue
		}

		site := g.site.Compute(leaf.Period, leaf.Exposure)
		rados := g.rados.Compute(leaf.Period, leaf.Exposure)
		pDrive += leaf.Probability * rados.PDrive
		pNRE += leaf.Probability * rados.PNRE
		lNRE = rados.LNRE
		if leaf.Counts.Sites == g.sites-1 {
			pSite += leaf.Probability * site.PSite
		}
	}

	stored := g.rados.StoredBytes()
	result := cephtools.Result{
		PSite:   pSite,
		LSite:   g.site.Size(),
		PDrive:  pDrive,
		LDrive:  stored * g.rados.LossFraction(g.sites),
		PNRE:    pNRE,
		LNRE:    lNRE,
		RawSize: g.site.Size() * float64(g.sites),
	}

	// writes still in flight die with the primary site
	if g.latency > 0 {
		// exposure follows the modeled period rather than a fixed year
		result.PRep = g.site.Compute(period, float64(g.sites)*mult).PSite
		result.LRep = g.latency / cephtools.Second * g.speed / 2
	}

	result.Durability = 1.0 - result.PSite
	if stored > 0 {
		result.Durability -= (result.PDrive*result.LDrive + result.PNRE*result.LNRE + result.PRep*result.LRep) / stored
	}

	return result
}

// FlatEstimate is the outcome of FlatApproximation.
type FlatEstimate struct {
	// Probability of losing every copy during the period
	Probability float64
	// SiteShare and DriveShare split the remote risk between site outages
	// and remote drive failures
	SiteShare  float64
	DriveShare float64
	// Loss is the share weighted number of bytes lost
	Loss float64
}

// FlatApproximation estimates the loss probability by multiplying the
// per-site risks of a recovery instead of walking the failure tree. Its
// figures drift away from Compute once more than two sites are involved.
func (g *Group) FlatApproximation(period float64) FlatEstimate {
	disk := g.rados.Disk()
	unavailable := 1.0 - g.site.Availability()

	p := g.rados.Compute(period, 1).PDrive
	if g.sites == 1 {
		p += unavailable
	}

	// share of the remote drives needed to recover a whole local drive
	needed := 1.0
	if drives := g.site.Size() / disk.Size(); drives < float64(g.rados.PGs()) {
		needed = float64(g.rados.PGs()) / drives
	}

	recovery := cephtools.TransferTime(disk.Size(), g.speed)
	remoteCopies := needed * g.rados.Compute(recovery, 1).PDrive
	remoteSite := g.site.Compute(recovery, 1).PSite

	estimate := FlatEstimate{SiteShare: 0.5, DriveShare: 0.5}
	if remote := remoteCopies + remoteSite + unavailable; remote > 0 {
		estimate.SiteShare = (remoteSite + unavailable) / remote
		estimate.DriveShare = 1 - estimate.SiteShare
	}

	if g.sites > 1 {
		for failed := 1; failed < g.sites; failed++ {
			p *= remoteCopies + unavailable + remoteSite
		}
		p += g.site.Compute(g.latency, 1).PSite
	}
	estimate.Probability = p

	lSite := g.rados.StoredBytes() * g.rados.LossFraction(1)
	lDrive := lSite
	if g.rados.Copies() == 1 {
		lDrive /= 2 * float64(g.rados.PGs())
	}
	estimate.Loss = estimate.SiteShare*lSite + estimate.DriveShare*lDrive

	return estimate
}

func pow3(n int) int {
	p := 1
	for range n {
		p *= 3
	}
	return p
}

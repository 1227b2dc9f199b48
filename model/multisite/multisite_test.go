package multisite

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/model/primitives"
	"github.com/ceph/ceph-tools/model/redundancy"
)

const (
	testDiskFITs    = 826
	testRecovery    = 100_000_000
	testSiteFITs    = 1000
	testSiteReplace = 20 * cephtools.Day
	testSiteSize    = 1e15
	testSiteSpeed   = 15_000_000
	testLatency     = 1.0 / 60
)

type fixture struct {
	disk  *primitives.Disk
	rados *redundancy.RADOS
	site  *primitives.Site
}

func newFixture(t *testing.T) fixture {
	disk, err := primitives.NewDisk(primitives.DiskConfig{Size: 1e12, FITs: testDiskFITs, NRE: 1e-15, Description: "test"})
	assert.NoError(t, err)

	rados, err := redundancy.NewRADOS(disk, redundancy.RADOSConfig{
		PGs:           100,
		Copies:        2,
		RecoverySpeed: testRecovery,
		Fullness:      0.75,
		ObjectSize:    1_000_000,
		StripeLength:  1,
		NRE:           cephtools.NREFail,
	})
	assert.NoError(t, err)

	site, err := primitives.NewSite(primitives.SiteConfig{
		DisasterFITs:    testSiteFITs,
		ReplacementTime: testSiteReplace,
		Size:            testSiteSize,
	})
	assert.NoError(t, err)

	return fixture{disk: disk, rados: rados, site: site}
}

func (f fixture) group(t *testing.T, sites int, mutate ...func(*Config)) *Group {
	cfg := Config{ReplicationSpeed: testSiteSpeed, Sites: sites}
	for _, m := range mutate {
		m(&cfg)
	}
	group, err := NewGroup(f.rados, f.site, cfg)
	assert.NoError(t, err)
	return group
}

func TestSingleSite(t *testing.T) {
	f := newFixture(t)
	r := f.group(t, 1).Compute(cephtools.Year, 1)

	rados := f.rados.Compute(cephtools.Year, 1)
	assert.Equal(t, rados.PDrive, r.PDrive)
	assert.Equal(t, rados.PNRE, r.PNRE)
	assert.Equal(t, rados.LDrive, r.LDrive)
	assert.Equal(t, rados.LNRE, r.LNRE)
	assert.Equal(t, f.site.Compute(cephtools.Year, 1).PSite, r.PSite)
	assert.Equal(t, testSiteSize, r.LSite)
	assert.Zero(t, r.PRep)
	assert.Zero(t, r.LRep)
	assert.Equal(t, testSiteSize, r.RawSize)

	stored := f.rados.StoredBytes()
	expected := r.PSite + (r.PDrive*r.LDrive+r.PNRE*r.LNRE)/stored
	assert.InEpsilon(t, expected, 1.0-r.Durability, 1e-6)

	// the multiplier reaches the root of the tree
	assert.Equal(t, f.rados.Compute(cephtools.Year, 3).PDrive, f.group(t, 1).Compute(cephtools.Year, 3).PDrive)
}

func TestSiteFailures(t *testing.T) {
	f := newFixture(t)
	sFail2 := primitives.Expected(testSiteFITs, testSiteReplace)
	first := func(sites float64) float64 { return f.site.Compute(cephtools.Year, sites).PSite }

	r := f.group(t, 2).Compute(cephtools.Year, 1)
	assert.InEpsilon(t, first(2)*sFail2, r.PSite, 0.001)
	assert.Equal(t, testSiteSize, r.LSite)

	r = f.group(t, 3).Compute(cephtools.Year, 1)
	assert.InEpsilon(t, first(3)*2*sFail2*sFail2, r.PSite, 0.002)

	r = f.group(t, 4).Compute(cephtools.Year, 1)
	assert.InEpsilon(t, first(4)*3*sFail2*2*sFail2*sFail2, r.PSite, 0.004)

	// twice the replacement time, twice the exposure of the second site
	slow, err := primitives.NewSite(primitives.SiteConfig{
		DisasterFITs:    testSiteFITs,
		ReplacementTime: 2 * testSiteReplace,
		Size:            testSiteSize,
	})
	assert.NoError(t, err)
	group, err := NewGroup(f.rados, slow, Config{ReplicationSpeed: testSiteSpeed, Sites: 2})
	assert.NoError(t, err)
	assert.InEpsilon(t, 2*first(2)*sFail2, group.Compute(cephtools.Year, 1).PSite, 0.001)
}

func TestDriveFailures(t *testing.T) {
	f := newFixture(t)

	single := f.group(t, 1).Compute(cephtools.Year, 1)
	sFail := single.PSite
	d2Fail := single.PDrive
	sFail2 := f.group(t, 2).Compute(cephtools.Year, 1).PSite / (2 * sFail)
	// the next site only has a local recovery in which to lose its copies
	dFail := primitives.Expected(testDiskFITs, cephtools.Year)
	d2More := 2 * math.Pow(dFail*f.rados.RebuildTime(testRecovery)/cephtools.Year, 2)
	pgSize := f.rados.StoredBytes() / (2 * 100)

	r := f.group(t, 2).Compute(cephtools.Year, 1)
	expected := (2*d2Fail)*d2More + // both sites lose their copies
		(2*sFail)*d2More + // a site, then the copies
		(2*d2Fail)*sFail2 // the copies, then a site
	assert.InEpsilon(t, expected, r.PDrive, 0.005)
	assert.InEpsilon(t, 2*sFail*sFail2+expected, 1.0-r.Durability, 0.005)
	assert.InEpsilon(t, pgSize, r.LDrive, 1e-9)

	r = f.group(t, 3).Compute(cephtools.Year, 1)
	expected = (3*d2Fail)*(2*d2More)*d2More + // c, c, c
		(3*d2Fail)*(2*d2More)*sFail2 + // c, c, s
		(3*d2Fail)*(2*sFail2)*d2More + // c, s, c
		(3*d2Fail)*(2*sFail2)*sFail2 + // c, s, s
		(3*sFail)*(2*d2More)*d2More + // s, c, c
		(3*sFail)*(2*d2More)*sFail2 + // s, c, s
		(3*sFail)*(2*sFail2)*d2More // s, s, c
	assert.InEpsilon(t, expected, r.PDrive, 0.005)
	assert.InEpsilon(t, 3*sFail*2*sFail2*sFail2+expected, 1.0-r.Durability, 0.005)
	assert.InEpsilon(t, pgSize, r.LDrive, 1e-9)
}

func TestNREFailures(t *testing.T) {
	f := newFixture(t)

	// a read error on the last site, after the other one was lost to a
	// disaster or to its copies
	afterSite := f.site.Compute(cephtools.Year, 2).PSite * f.rados.Compute(testSiteReplace, 1).PNRE
	afterCopies := f.rados.Compute(cephtools.Year, 1).PDrive * f.rados.Compute(f.rados.RebuildTime(testSiteSpeed), 1).PNRE

	r := f.group(t, 2).Compute(cephtools.Year, 1)
	assert.InEpsilon(t, afterSite+afterCopies, r.PNRE, 1e-9)
	assert.InEpsilon(t, 1_000_000, r.LNRE, 1e-9)
	assert.Less(t, r.PNRE, f.group(t, 1).Compute(cephtools.Year, 1).PNRE)

	// an object fetched again from a remote site is not lost
	assert.Less(t, f.group(t, 3).Compute(cephtools.Year, 1).PNRE, r.PNRE)
}

func TestMoreSitesMoreDurable(t *testing.T) {
	f := newFixture(t)

	previous := f.group(t, 1).Compute(cephtools.Year, 1)
	for sites := 2; sites <= 4; sites++ {
		r := f.group(t, sites).Compute(cephtools.Year, 1)
		assert.Less(t, r.PSite, previous.PSite, "sites=%d", sites)
		assert.LessOrEqual(t, r.PDrive, previous.PDrive, "sites=%d", sites)
		assert.GreaterOrEqual(t, r.Durability, previous.Durability, "sites=%d", sites)
		assert.Equal(t, float64(sites)*testSiteSize, r.RawSize)
		previous = r
	}
}

func TestAsynchronousReplication(t *testing.T) {
	f := newFixture(t)

	group := f.group(t, 2, func(cfg *Config) { cfg.ReplicationLatency = testLatency })
	r := group.Compute(cephtools.Year, 1)
	assert.Equal(t, f.site.Compute(cephtools.Year, 2).PSite, r.PRep)
	// a minute of writes at 15MB/s, half of them in flight on average
	assert.InEpsilon(t, 450_000_000, r.LRep, 1e-9)

	faster := f.group(t, 2, func(cfg *Config) {
		cfg.ReplicationLatency = testLatency
		cfg.ReplicationSpeed *= 2
	})
	assert.InEpsilon(t, 2*r.LRep, faster.Compute(cephtools.Year, 1).LRep, 1e-9)

	synchronous := f.group(t, 2).Compute(cephtools.Year, 1)
	assert.Less(t, r.Durability, synchronous.Durability)
}

func TestBranches(t *testing.T) {
	f := newFixture(t)

	leaves := f.group(t, 1).Branches(cephtools.Year)
	assert.Equal(t, []Branch{{Probability: 1, Period: cephtools.Year, Exposure: 1}}, leaves)

	group := f.group(t, 3)
	leaves = group.Branches(cephtools.Year)
	assert.Len(t, leaves, 9)

	seen := map[Counts]bool{}
	for _, leaf := range leaves {
		assert.Equal(t, 2, leaf.Counts.Total())
		assert.GreaterOrEqual(t, leaf.Probability, 0.0)
		assert.LessOrEqual(t, leaf.Probability, 1.0)
		seen[leaf.Counts] = true

		// the last level inherits the recovery window of the last failure
		switch {
		case leaf.Counts == Counts{Sites: 2}:
			assert.Equal(t, testSiteReplace, leaf.Period)
		case leaf.Counts == Counts{Copies: 2}:
			assert.Equal(t, f.rados.RebuildTime(testSiteSpeed), leaf.Period)
		case leaf.Counts == Counts{NREs: 2}:
			assert.InEpsilon(t, 1_000_000.0/testSiteSpeed*cephtools.Second, leaf.Period, 1e-9)
		}
	}
	// every combination of two failures is reached through two paths at most
	assert.Len(t, seen, 6)

	assert.Len(t, f.group(t, MaxSites).Branches(cephtools.Year), 2187)
}

func TestNewGroupValidation(t *testing.T) {
	f := newFixture(t)

	for field, cfg := range map[string]Config{
		"sites":   {ReplicationSpeed: 1, Sites: MaxSites + 1},
		"recover": {Sites: 2},
		"latency": {ReplicationSpeed: 1, Sites: 1, ReplicationLatency: -1},
	} {
		_, err := NewGroup(f.rados, f.site, cfg)
		var cfgErr *cephtools.ConfigurationError
		if assert.ErrorAs(t, err, &cfgErr, field) {
			assert.Equal(t, field, cfgErr.Field)
		}
	}

	_, err := NewGroup(f.rados, f.site, Config{})
	assert.ErrorIs(t, err, cephtools.ErrConfiguration)
	_, err = NewGroup(nil, f.site, DefaultConfig())
	assert.ErrorIs(t, err, cephtools.ErrConfiguration)
	_, err = NewGroup(f.rados, nil, DefaultConfig())
	assert.ErrorIs(t, err, cephtools.ErrConfiguration)

	group, err := NewGroup(f.rados, f.site, DefaultConfig())
	assert.NoError(t, err)
	assert.Equal(t, "RADOS: 1-site, 2-cp", group.Description())
	assert.Equal(t, cephtools.KindMultiSite, group.Kind())
}

func TestFlatApproximation(t *testing.T) {
	f := newFixture(t)

	single := f.group(t, 1).FlatApproximation(cephtools.Year)
	expected := f.rados.Compute(cephtools.Year, 1).PDrive + 1 - f.site.Availability()
	assert.InEpsilon(t, expected, single.Probability, 1e-9)

	previous := single
	for sites := 2; sites <= 4; sites++ {
		estimate := f.group(t, sites).FlatApproximation(cephtools.Year)
		assert.Less(t, estimate.Probability, previous.Probability, "sites=%d", sites)
		assert.InDelta(t, 1.0, estimate.SiteShare+estimate.DriveShare, 1e-12)
		previous = estimate
	}

	stored := f.rados.StoredBytes()
	assert.Greater(t, previous.Loss, 0.0)
	assert.LessOrEqual(t, previous.Loss, stored)

	// replication latency exposes the primary site
	lagging := f.group(t, 2, func(cfg *Config) { cfg.ReplicationLatency = testLatency }).FlatApproximation(cephtools.Year)
	synchronous := f.group(t, 2).FlatApproximation(cephtools.Year)
	assert.InEpsilon(t, f.site.Compute(testLatency, 1).PSite, lagging.Probability-synchronous.Probability, 1e-6)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/model/redundancy"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	assert.Equal(t, Hours(cephtools.Year), cfg.Period)
	assert.Equal(t, Bytes(2e12), cfg.Disk.Size)
	assert.Equal(t, Bytes(1<<30), cfg.ObjectSize)
	assert.Equal(t, Bytes(20e6), cfg.RAID.Recover)
	assert.InEpsilon(t, 1e9/(1000*cephtools.Year), cfg.Site.Majeure, 1e-12)

	policy, err := cfg.NREPolicy()
	assert.NoError(t, err)
	assert.Equal(t, cephtools.NREFail, policy)

	level, err := cfg.RAIDLevel()
	assert.NoError(t, err)
	assert.Equal(t, redundancy.RAID1, level)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
period: 2y
verbosity: data only
nre_model: error+fail/2
object_size: 4MiB
disk:
  size: 4TB
  fit: 1000
  nre: 1e-15
raid:
  type: raid6
  volumes: 8
  replace: 12h
rados:
  copies: 3
  markout: 5m
  recover: 100MB
  fullness: 0.5
site:
  recover: 2w
  size: 2PB
remote:
  sites: 3
  latency: 30s
`))
	assert.NoError(t, err)

	assert.Equal(t, Hours(2*cephtools.Year), cfg.Period)
	assert.Equal(t, "data only", cfg.Verbosity)
	assert.Equal(t, "error+fail/2", cfg.NREModel)
	assert.Equal(t, Bytes(4<<20), cfg.ObjectSize)

	assert.Equal(t, Bytes(4e12), cfg.Disk.Size)
	assert.Equal(t, 1000.0, cfg.Disk.FIT)
	assert.Equal(t, 826.0, cfg.Disk.FIT2)
	assert.Equal(t, 1e-15, cfg.Disk.NRE)
	assert.Equal(t, "Enterprise", cfg.Disk.Type)

	assert.Equal(t, "raid6", cfg.RAID.Type)
	assert.Equal(t, 8, cfg.RAID.Volumes)
	assert.Equal(t, Hours(12), cfg.RAID.Replace)
	assert.Equal(t, Bytes(20e6), cfg.RAID.Recover)

	assert.Equal(t, 3, cfg.RADOS.Copies)
	assert.InDelta(t, 5.0/60, float64(cfg.RADOS.Markout), 1e-12)
	assert.Equal(t, Bytes(1e8), cfg.RADOS.Recover)
	assert.Equal(t, 0.5, cfg.RADOS.Fullness)
	assert.Equal(t, 200, cfg.RADOS.Decluster)

	assert.Equal(t, Hours(14*cephtools.Day), cfg.Site.Recover)
	assert.Equal(t, Bytes(2e15), cfg.Site.Size)

	assert.Equal(t, 3, cfg.Remote.Sites)
	assert.InDelta(t, 30.0/3600, float64(cfg.Remote.Latency), 1e-12)

	level, err := cfg.RAIDLevel()
	assert.NoError(t, err)
	assert.Equal(t, redundancy.RAID6, level)
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	assert.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseDiskPreset(t *testing.T) {
	cfg, err := Parse([]byte("disk:\n  type: consumer\n"))
	assert.NoError(t, err)
	assert.Equal(t, "Consumer", cfg.Disk.Type)
	assert.Equal(t, 1320.0, cfg.Disk.FIT)
	assert.Equal(t, 1320.0, cfg.Disk.FIT2)
	assert.Equal(t, 1e-14, cfg.Disk.NRE)

	// explicit rates win over the preset
	cfg, err = Parse([]byte("disk:\n  type: real\n  fit: 5000\n"))
	assert.NoError(t, err)
	assert.Equal(t, "Real-world", cfg.Disk.Type)
	assert.Equal(t, 5000.0, cfg.Disk.FIT)
	assert.Equal(t, 1e-14, cfg.Disk.NRE)

	_, err = Parse([]byte("disk:\n  type: floppy\n"))
	assert.ErrorIs(t, err, cephtools.ErrConfiguration)
}

func TestParseErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"unknown key":   "disks:\n  size: 1TB\n",
		"bad size":      "disk:\n  size: lots\n",
		"bad duration":  "period: 3 fortnights\n",
		"fullness":      "rados:\n  fullness: 1.5\n",
		"copies":        "rados:\n  copies: 0\n",
		"sites":         "remote:\n  sites: 9\n",
		"raid level":    "raid:\n  type: RAID-4\n",
		"nre model":     "nre_model: sometimes\n",
		"verbosity":     "verbosity: loud\n",
		"negative rate": "disk:\n  fit: -1\n",
		"not yaml":      "period: [1\n",
	} {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rely.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("remote:\n  sites: 2\n"), 0o644))

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 2, cfg.Remote.Sites)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseHours(t *testing.T) {
	for input, expected := range map[string]Hours{
		"1":       1,
		"2.5":     2.5,
		"90s":     Hours(90 * cephtools.Second),
		"10m":     Hours(10 * cephtools.Minute),
		"10 min":  Hours(10 * cephtools.Minute),
		"6h":      6,
		"30d":     Hours(30 * cephtools.Day),
		"2 weeks": Hours(14 * cephtools.Day),
		"1y":      Hours(cephtools.Year),
		" 1Y ":    Hours(cephtools.Year),
	} {
		h, err := ParseHours(input)
		assert.NoError(t, err, input)
		assert.InDelta(t, float64(expected), float64(h), 1e-12, input)
	}

	for _, input := range []string{"", "h", "1x", "one year"} {
		_, err := ParseHours(input)
		assert.Error(t, err, input)
	}
}

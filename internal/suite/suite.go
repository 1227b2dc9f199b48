// Package suite builds the models of a run out of its configuration.
package suite

import (
	"fmt"
	"strings"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/internal/config"
	"github.com/ceph/ceph-tools/model/multisite"
	"github.com/ceph/ceph-tools/model/primitives"
	"github.com/ceph/ceph-tools/model/redundancy"
)

// Names lists the models One knows how to build.
var Names = []string{"disk", "raid", "rados", "site", "multi"}

func Disk(cfg config.Config) (*primitives.Disk, error) {
	disk, err := primitives.NewDisk(primitives.DiskConfig{
		Size:          float64(cfg.Disk.Size),
		FITs:          cfg.Disk.FIT,
		SecondaryFITs: cfg.Disk.FIT2,
		NRE:           cfg.Disk.NRE,
		Description:   fmt.Sprintf("Disk: %s", cfg.Disk.Type),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build disk: %w", err)
	}
	return disk, nil
}

// RAID builds a set of volumes drives at level. Recovery parameters are
// shared by every level.
func RAID(cfg config.Config, disk *primitives.Disk, level redundancy.Level, volumes int) (*redundancy.RAID, error) {
	policy, err := cfg.NREPolicy()
	if err != nil {
		return nil, err
	}

	raid, err := redundancy.NewRAID(disk, redundancy.RAIDConfig{
		Level:         level,
		Volumes:       volumes,
		RecoverySpeed: float64(cfg.RAID.Recover),
		Delay:         float64(cfg.RAID.Replace),
		NRE:           policy,
		ObjectSize:    float64(cfg.ObjectSize),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", level, err)
	}
	return raid, nil
}

func RADOS(cfg config.Config, disk *primitives.Disk, copies int) (*redundancy.RADOS, error) {
	policy, err := cfg.NREPolicy()
	if err != nil {
		return nil, err
	}

	rados, err := redundancy.NewRADOS(disk, redundancy.RADOSConfig{
		PGs:           cfg.RADOS.Decluster,
		Copies:        copies,
		RecoverySpeed: float64(cfg.RADOS.Recover),
		MarkoutDelay:  float64(cfg.RADOS.Markout),
		Fullness:      cfg.RADOS.Fullness,
		ObjectSize:    float64(cfg.ObjectSize),
		StripeLength:  cfg.StripeLength,
		NRE:           policy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build rados: %w", err)
	}
	return rados, nil
}

func Site(cfg config.Config) (*primitives.Site, error) {
	site, err := primitives.NewSite(primitives.SiteConfig{
		DisasterFITs:    cfg.Site.Majeure,
		ReplacementTime: float64(cfg.Site.Recover),
		Size:            float64(cfg.Site.Size),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build site: %w", err)
	}
	return site, nil
}

func MultiSite(cfg config.Config, rados *redundancy.RADOS, site *primitives.Site, sites int) (*multisite.Group, error) {
	group, err := multisite.NewGroup(rados, site, multisite.Config{
		ReplicationSpeed:   float64(cfg.Remote.Recover),
		ReplicationLatency: float64(cfg.Remote.Latency),
		Sites:              sites,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build multi-site group: %w", err)
	}
	return group, nil
}

// One builds the single model named which, as configured.
func One(cfg config.Config, which string) ([]cephtools.Model, error) {
	which = strings.ToLower(strings.TrimSpace(which))

	disk, err := Disk(cfg)
	if err != nil {
		return nil, err
	}

	switch which {
	case "disk":
		return []cephtools.Model{disk}, nil

	case "raid":
		level, err := cfg.RAIDLevel()
		if err != nil {
			return nil, err
		}
		raid, err := RAID(cfg, disk, level, cfg.RAID.Volumes)
		if err != nil {
			return nil, err
		}
		return []cephtools.Model{raid}, nil

	case "site":
		site, err := Site(cfg)
		if err != nil {
			return nil, err
		}
		return []cephtools.Model{site}, nil
	}

	rados, err := RADOS(cfg, disk, cfg.RADOS.Copies)
	if err != nil {
		return nil, err
	}

	switch which {
	case "rados":
		return []cephtools.Model{rados}, nil

	case "multi", "multisite":
		site, err := Site(cfg)
		if err != nil {
			return nil, err
		}
		group, err := MultiSite(cfg, rados, site, cfg.Remote.Sites)
		if err != nil {
			return nil, err
		}
		return []cephtools.Model{group}, nil
	}

	return nil, fmt.Errorf("unknown model %q, expected one of %s", which, strings.Join(Names, ", "))
}

// Default builds the standard comparison: the bare disk, the usual RAID
// layouts, one to three RADOS copies, then a heading break followed by the
// site and one to four sites of each RADOS layout.
func Default(cfg config.Config) ([]cephtools.Model, error) {
	disk, err := Disk(cfg)
	if err != nil {
		return nil, err
	}

	models := []cephtools.Model{disk}

	for _, layout := range []struct {
		level   redundancy.Level
		volumes int
	}{
		{redundancy.RAID0, 2},
		{redundancy.RAID5, 4},
		{redundancy.RAID1, 2},
		{redundancy.RAID6, 8},
	} {
		raid, err := RAID(cfg, disk, layout.level, layout.volumes)
		if err != nil {
			return nil, err
		}
		models = append(models, raid)
	}

	placementGroups := make([]*redundancy.RADOS, 0, 3)
	for copies := 1; copies <= 3; copies++ {
		rados, err := RADOS(cfg, disk, copies)
		if err != nil {
			return nil, err
		}
		placementGroups = append(placementGroups, rados)
		models = append(models, rados)
	}

	site, err := Site(cfg)
	if err != nil {
		return nil, err
	}
	models = append(models, nil, site)

	for sites := 1; sites <= 4; sites++ {
		for _, rados := range placementGroups {
			group, err := MultiSite(cfg, rados, site, sites)
			if err != nil {
				return nil, err
			}
			models = append(models, group)
		}
	}

	return models, nil
}

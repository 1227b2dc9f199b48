// Package config holds the parameters of a reliability run: the defaults, a
// YAML file overriding them, and their validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/model/primitives"
	"github.com/ceph/ceph-tools/model/redundancy"
)

// Bytes is a size in bytes. Files may spell it "2TB" or "1GiB".
type Bytes float64

// Hours is a duration in hours. Files may spell it "10m", "6h", "30d" or
// "1y".
type Hours float64

type Config struct {
	Period       Hours  `mapstructure:"period" yaml:"period" validate:"gt=0"`
	Verbosity    string `mapstructure:"verbosity" yaml:"verbosity" validate:"oneof=all parameters headings 'data only'"`
	NREModel     string `mapstructure:"nre_model" yaml:"nre_model" validate:"oneof=fail ignore error error+fail/2"`
	ObjectSize   Bytes  `mapstructure:"object_size" yaml:"object_size" validate:"gte=0"`
	StripeLength int    `mapstructure:"stripe_length" yaml:"stripe_length" validate:"gte=1"`
	Disk         Disk   `mapstructure:"disk" yaml:"disk"`
	RAID         RAID   `mapstructure:"raid" yaml:"raid"`
	RADOS        RADOS  `mapstructure:"rados" yaml:"rados"`
	Site         Site   `mapstructure:"site" yaml:"site"`
	Remote       Remote `mapstructure:"remote" yaml:"remote"`
}

type Disk struct {
	Type string  `mapstructure:"type" yaml:"type"`
	Size Bytes   `mapstructure:"size" yaml:"size" validate:"gt=0"`
	NRE  float64 `mapstructure:"nre" yaml:"nre" validate:"gte=0"`
	FIT  float64 `mapstructure:"fit" yaml:"fit" validate:"gte=0"`
	FIT2 float64 `mapstructure:"fit2" yaml:"fit2" validate:"gte=0"`
}

type RAID struct {
	Type    string `mapstructure:"type" yaml:"type" validate:"raid_level"`
	Volumes int    `mapstructure:"volumes" yaml:"volumes" validate:"gte=1"`
	Replace Hours  `mapstructure:"replace" yaml:"replace" validate:"gte=0"`
	Recover Bytes  `mapstructure:"recover" yaml:"recover" validate:"gt=0"`
}

type RADOS struct {
	Copies    int     `mapstructure:"copies" yaml:"copies" validate:"gte=1"`
	Markout   Hours   `mapstructure:"markout" yaml:"markout" validate:"gte=0"`
	Recover   Bytes   `mapstructure:"recover" yaml:"recover" validate:"gt=0"`
	Decluster int     `mapstructure:"decluster" yaml:"decluster" validate:"gte=1"`
	Fullness  float64 `mapstructure:"fullness" yaml:"fullness" validate:"gte=0,lte=1"`
}

type Site struct {
	// Majeure is the rate of site destroying disasters, in FITs
	Majeure float64 `mapstructure:"majeure" yaml:"majeure" validate:"gte=0"`
	Recover Hours   `mapstructure:"recover" yaml:"recover" validate:"gte=0"`
	Size    Bytes   `mapstructure:"size" yaml:"size" validate:"gte=0"`
}

type Remote struct {
	Sites   int   `mapstructure:"sites" yaml:"sites" validate:"gte=1,lte=8"`
	Recover Bytes `mapstructure:"recover" yaml:"recover" validate:"gt=0"`
	Latency Hours `mapstructure:"latency" yaml:"latency" validate:"gte=0"`
}

// Default returns the parameters used when nothing else is given.
func Default() Config {
	return Config{
		Period:       Hours(cephtools.Year),
		Verbosity:    "all",
		NREModel:     "fail",
		ObjectSize:   Bytes(1 * cephtools.GB),
		StripeLength: 1,
		Disk: Disk{
			Type: "Enterprise",
			Size: Bytes(2 * cephtools.TiB),
			NRE:  1e-16,
			FIT:  826,
			FIT2: 826,
		},
		RAID: RAID{
			Type:    redundancy.RAID1.String(),
			Volumes: 2,
			Replace: Hours(6 * cephtools.Hour),
			Recover: Bytes(20 * cephtools.MiB),
		},
		RADOS: RADOS{
			Copies:    2,
			Markout:   Hours(10 * cephtools.Minute),
			Recover:   Bytes(50 * cephtools.MiB),
			Decluster: 200,
			Fullness:  0.75,
		},
		Site: Site{
			Majeure: primitives.FitRate(.001, cephtools.Year),
			Recover: Hours(30 * cephtools.Day),
			Size:    Bytes(1 * cephtools.PiB),
		},
		Remote: Remote{
			Sites:   1,
			Recover: Bytes(10 * cephtools.MiB),
		},
	}
}

// NREPolicy returns the parsed nre_model.
func (cfg Config) NREPolicy() (cephtools.NREPolicy, error) {
	return cephtools.ParseNREPolicy(cfg.NREModel)
}

// RAIDLevel returns the parsed raid.type.
func (cfg Config) RAIDLevel() (redundancy.Level, error) {
	return redundancy.ParseLevel(cfg.RAID.Type)
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("raid_level", func(fl validator.FieldLevel) bool {
		_, err := redundancy.ParseLevel(fl.Field().String())
		return err == nil
	})
}

// Validate checks every field against its allowed range.
func (cfg Config) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Load reads the YAML file at path and applies it over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	return cfg, nil
}

// Parse applies a YAML document over the defaults. Unknown keys are
// rejected.
func Parse(data []byte) (Config, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			bytesHook,
			hoursHook,
		),
		ErrorUnused: true,
		Result:      &cfg,
	})
	if err != nil {
		return Config{}, fmt.Errorf("failed to create config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	if disk, ok := raw["disk"].(map[string]any); ok {
		if err := applyDiskPreset(&cfg.Disk, disk); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyDiskPreset fills the rates of a disk named by type only.
func applyDiskPreset(disk *Disk, raw map[string]any) error {
	if _, found := raw["type"]; !found {
		return nil
	}
	_, hasFIT := raw["fit"]
	_, hasNRE := raw["nre"]
	if hasFIT && hasNRE {
		return nil
	}

	preset, found := primitives.LookupDiskPreset(disk.Type)
	if !found {
		return cephtools.ConfigError("config", "disk.type", "no disk preset matches %q", disk.Type)
	}

	slog.Debug("applying disk preset", "type", disk.Type, "preset", preset.Name)
	disk.Type = preset.Name
	if !hasFIT {
		disk.FIT = preset.FITs
		if _, hasFIT2 := raw["fit2"]; !hasFIT2 {
			disk.FIT2 = preset.FITs
		}
	}
	if !hasNRE {
		disk.NRE = preset.NRE
	}

	return nil
}

func bytesHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(Bytes(0)) || from.Kind() != reflect.String {
		return data, nil
	}

	s := reflect.ValueOf(data).String()
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return nil, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return Bytes(n), nil
}

func hoursHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(Hours(0)) || from.Kind() != reflect.String {
		return data, nil
	}
	return ParseHours(reflect.ValueOf(data).String())
}

var hourUnits = map[string]float64{
	"s": cephtools.Second, "sec": cephtools.Second, "second": cephtools.Second, "seconds": cephtools.Second,
	"m": cephtools.Minute, "min": cephtools.Minute, "minute": cephtools.Minute, "minutes": cephtools.Minute,
	"h": cephtools.Hour, "hour": cephtools.Hour, "hours": cephtools.Hour,
	"d": cephtools.Day, "day": cephtools.Day, "days": cephtools.Day,
	"w": 7 * cephtools.Day, "week": 7 * cephtools.Day, "weeks": 7 * cephtools.Day,
	"y": cephtools.Year, "year": cephtools.Year, "years": cephtools.Year,
}

// ParseHours reads "90s", "10m", "6h", "30d", "2w", "1y" or a bare number of
// hours.
func ParseHours(s string) (Hours, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if h, err := strconv.ParseFloat(s, 64); err == nil {
		return Hours(h), nil
	}

	i := strings.IndexFunc(s, unicode.IsLetter)
	if i <= 0 {
		return 0, fmt.Errorf("invalid duration %q", s)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(s[:i]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	unit, found := hourUnits[s[i:]]
	if !found {
		return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, s[i:])
	}

	return Hours(value * unit), nil
}

package cephtools

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// Result is one probability/loss snapshot produced by a model for a given
// period. Probabilities are per period, losses are in bytes.
type Result struct {
	// PSite is the probability of losing data to a whole-site disaster
	PSite float64
	LSite float64
	// PDrive is the probability of losing every copy to drive failures
	PDrive float64
	LDrive float64
	// PNRE is the probability of a non-recoverable read error during recovery
	PNRE float64
	LNRE float64
	// PRep is the probability of losing data not yet replicated to a remote site
	PRep float64
	LRep float64
	// Durability is the probability that an arbitrary object survives the period
	Durability float64
	// RawSize is the raw capacity, in bytes, consumed by the modeled unit
	RawSize float64
}

func (r Result) probabilities() []float64 {
	return []float64{r.PSite, r.PDrive, r.PNRE, r.PRep}
}

func (r Result) losses() []float64 {
	return []float64{r.LSite, r.LDrive, r.LNRE, r.LRep}
}

// ExpectedLoss returns the probability weighted data loss in bytes.
func (r Result) ExpectedLoss() float64 {
	return floats.Dot(r.probabilities(), r.losses())
}

// LossPerPiB normalizes the expected loss to one (decimal) petabyte of raw
// storage.
func (r Result) LossPerPiB() float64 {
	if r.RawSize == 0 {
		return 0
	}
	return r.ExpectedLoss() * PiB / r.RawSize
}

// Kind tags the family of a model.
type Kind int

const (
	KindDisk Kind = iota
	KindRAID
	KindRADOS
	KindSite
	KindMultiSite
)

func (k Kind) String() string {
	switch k {
	case KindDisk:
		return "disk"
	case KindRAID:
		return "raid"
	case KindRADOS:
		return "rados"
	case KindSite:
		return "site"
	case KindMultiSite:
		return "multisite"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Model is implemented by every reliability model. Compute is pure: it
// never changes the model and can be called concurrently.
type Model interface {
	Kind() Kind
	Description() string
	// Compute returns the failure probabilities over period hours. mult
	// multiplies the exposure (e.g. many parallel units).
	Compute(period, mult float64) Result
}

// NREPolicy says what a non-recoverable read error during recovery costs.
type NREPolicy int

const (
	// NREFail loses the whole unit being recovered.
	NREFail NREPolicy = iota
	// NREIgnore assumes scrubbing catches errors before they matter.
	NREIgnore
	// NREError loses a single object.
	NREError
	// NREErrorFailHalf averages the error and fail outcomes.
	NREErrorFailHalf
)

var nrePolicyNames = map[NREPolicy]string{
	NREFail:          "fail",
	NREIgnore:        "ignore",
	NREError:         "error",
	NREErrorFailHalf: "error+fail/2",
}

func (p NREPolicy) String() string {
	if name, found := nrePolicyNames[p]; found {
		return name
	}
	return fmt.Sprintf("nre(%d)", int(p))
}

// ParseNREPolicy maps a policy name to its value. An empty name is the
// default policy.
func ParseNREPolicy(name string) (NREPolicy, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return NREFail, nil
	}
	for policy, policyName := range nrePolicyNames {
		if policyName == name {
			return policy, nil
		}
	}
	return NREFail, &ConfigurationError{Field: "nre_model", Reason: fmt.Sprintf("unknown NRE policy %q", name)}
}

// Evaluation pairs a model with the result it produced.
type Evaluation struct {
	Model  Model
	Result Result
}

// Evaluate computes every model over period concurrently and returns the
// evaluations in input order. Nil models are kept as empty evaluations.
func Evaluate(ctx context.Context, models []Model, period float64) ([]Evaluation, error) {
	evaluations := make([]Evaluation, len(models))

	errg, errgctx := errgroup.WithContext(ctx)
	errg.SetLimit(runtime.GOMAXPROCS(0))
	for i, model := range models {
		if model == nil {
			continue
		}
		errg.Go(func() error {
			if err := errgctx.Err(); err != nil {
				return err
			}
			evaluations[i] = Evaluation{Model: model, Result: model.Compute(period, 1)}
			return nil
		})
	}

	if err := errg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to evaluate models: %w", err)
	}

	return evaluations, nil
}

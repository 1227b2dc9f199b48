// Package report runs a list of models and prints their results as columns,
// preceded by the parameters they were built with.
package report

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	cephtools "github.com/ceph/ceph-tools"
	"github.com/ceph/ceph-tools/model/multisite"
	"github.com/ceph/ceph-tools/model/primitives"
	"github.com/ceph/ceph-tools/model/redundancy"
)

// Verbosity levels, from the most to the least talkative.
const (
	VerbosityAll        = "all"
	VerbosityParameters = "parameters"
	VerbosityHeadings   = "headings"
	VerbosityData       = "data only"
)

const (
	indent      = 4
	descWidth   = 20
	columnWidth = 12
)

var headings = []string{"storage", "durability", "PL(site)", "PL(copies)", "PL(NRE)", "PL(rep)", "loss/PiB"}

var legends = []string{
	"storage unit/configuration being modeled",
	"probability of object survival",
	"probability of loss due to site failures",
	"probability of loss due to drive failures",
	"probability of loss due to NREs during recovery",
	"probability of loss due to replication failure",
	"expected data loss per Petabyte",
}

var bold = color.New(color.Bold)

type Options struct {
	// Period is the number of hours every model is computed over
	Period    float64
	Verbosity string
}

// Row is the unformatted result of one model.
type Row struct {
	Model      string  `json:"model"`
	Kind       string  `json:"kind"`
	Durability float64 `json:"durability"`
	PSite      float64 `json:"p_site"`
	PDrive     float64 `json:"p_drive"`
	PNRE       float64 `json:"p_nre"`
	PRep       float64 `json:"p_rep"`
	LossPerPiB float64 `json:"loss_per_pib"`
}

// NewRows flattens evaluations, skipping heading breaks.
func NewRows(evaluations []cephtools.Evaluation) []Row {
	rows := make([]Row, 0, len(evaluations))
	for _, evaluation := range evaluations {
		if evaluation.Model == nil {
			continue
		}
		r := evaluation.Result
		rows = append(rows, Row{
			Model:      evaluation.Model.Description(),
			Kind:       evaluation.Model.Kind().String(),
			Durability: r.Durability,
			PSite:      r.PSite,
			PDrive:     r.PDrive,
			PNRE:       r.PNRE,
			PRep:       r.PRep,
			LossPerPiB: r.LossPerPiB(),
		})
	}
	return rows
}

// Run computes every model over opts.Period and prints the report on w. A
// nil model prints the column headings again.
func Run(ctx context.Context, w io.Writer, models []cephtools.Model, opts Options) error {
	showParameters, showLegends, showHeadings := true, true, true
	switch opts.Verbosity {
	case VerbosityParameters:
		showLegends = false
	case VerbosityHeadings:
		showParameters, showLegends = false, false
	case VerbosityData:
		showParameters, showLegends, showHeadings = false, false, false
	}

	evaluations, err := cephtools.Evaluate(ctx, models, opts.Period)
	if err != nil {
		return err
	}

	p := &printer{w: w}
	if showParameters {
		p.parameters(findParameters(models))
	}

	if showLegends {
		p.println()
		p.println("Column legends")
		for i, legend := range legends {
			if i == 0 {
				p.printf("\t%d %s\n", i+1, legend)
				continue
			}
			p.printf("\t%d %s (per %s)\n", i+1, legend, Time(opts.Period))
		}
	}

	if showHeadings {
		p.headings()
	}

	for _, evaluation := range evaluations {
		if evaluation.Model == nil {
			p.headings()
			continue
		}
		r := evaluation.Result
		p.row(
			evaluation.Model.Description(),
			Durability(r.Durability),
			Probability(r.PSite),
			Probability(r.PDrive),
			Probability(r.PNRE),
			Probability(r.PRep),
			Float(r.LossPerPiB()),
		)
	}

	return p.err
}

// parameters holds the first model of every family, found directly in the
// list or beneath a composite model.
type parameters struct {
	disk  *primitives.Disk
	raid  *redundancy.RAID
	rados *redundancy.RADOS
	site  *primitives.Site
	multi *multisite.Group
}

func findParameters(models []cephtools.Model) parameters {
	var found parameters
	for _, model := range models {
		switch m := model.(type) {
		case *primitives.Disk:
			if found.disk == nil {
				found.disk = m
			}
		case *redundancy.RAID:
			if found.raid == nil {
				found.raid = m
			}
		case *redundancy.RADOS:
			if found.rados == nil {
				found.rados = m
			}
		case *primitives.Site:
			if found.site == nil {
				found.site = m
			}
		case *multisite.Group:
			if found.multi == nil {
				found.multi = m
			}
		}
	}

	if found.multi != nil {
		if found.site == nil {
			found.site = found.multi.Site()
		}
		if found.rados == nil {
			found.rados = found.multi.RADOS()
		}
	}
	if found.disk == nil && found.rados != nil {
		found.disk = found.rados.Disk()
	}
	if found.disk == nil && found.raid != nil {
		found.disk = found.raid.Disk()
	}

	return found
}

// printer keeps the first write error and ignores the following writes.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintln(p.w, args...)
}

func (p *printer) title(title string) {
	if p.err != nil {
		return
	}
	_, p.err = bold.Fprintln(p.w, title)
}

func (p *printer) parameters(found parameters) {
	if disk := found.disk; disk != nil {
		p.title("Disk Modeling Parameters")
		p.printf("    size:     %10s\n", Size(disk.Size()))
		if mttf, err := primitives.MTTF(disk.FITs()); err == nil {
			p.printf("    FIT rate: %10.0f (MTBF = %s)\n", disk.FITs(), Time(mttf))
		} else {
			p.printf("    FIT rate: %10.0f (never fails)\n", disk.FITs())
		}
		p.printf("    NRE rate: %10.1E\n", disk.NRE())
	}

	if raid := found.raid; raid != nil {
		p.title("RAID parameters")
		p.printf("    replace:  %16s\n", Time(raid.Delay()))
		if raid.RecoverySpeed() > 0 {
			p.printf("    recovery rate: %7s/s (%s)\n", Size(raid.RecoverySpeed()), Time(raid.RebuildTime()))
		}
		p.printf("    NRE model:        %10s\n", raid.NREPolicy())
		p.printf("    object size:      %10s\n", Size(raid.ObjectSize()))
	}

	if rados := found.rados; rados != nil {
		p.title("RADOS parameters")
		p.printf("    auto mark-out: %14s\n", Time(rados.MarkoutDelay()))
		p.printf("    recovery rate: %8s/s (%s/drive)\n", Size(rados.RecoverySpeed()), Time(rados.RebuildTime(rados.RecoverySpeed())))
		p.printf("    osd fullness: %7d%%\n", whole(rados.Fullness()*100))
		p.printf("    declustering: %7d PG/OSD\n", rados.PGs())
		p.printf("    NRE model:        %10s\n", rados.NREPolicy())
		p.printf("    object size:  %7s\n", BinarySize(rados.ObjectSize()))
		p.printf("    stripe length:%7d\n", rados.StripeLength())
	}

	if site := found.site; site != nil {
		p.title("Site parameters")
		if mttf, err := primitives.MTTF(site.DisasterFITs()); err == nil {
			p.printf("    disaster rate: %12s (%.0f FITS)\n", Time(mttf), site.DisasterFITs())
		} else {
			p.println("    disasters:    IGNORED")
		}
		if site.ReplacementTime() == 0 {
			p.println("    site recovery:   NEVER")
		} else {
			p.printf("    site recovery: %11s\n", Time(site.ReplacementTime()))
		}

		if multi := found.multi; multi != nil {
			p.printf("    recovery rate: %8s/s (%s/PG)\n", Size(multi.ReplicationSpeed()), Time(multi.RADOS().RebuildTime(multi.ReplicationSpeed())))
			if multi.ReplicationLatency() == 0 {
				p.println("    replication:       synchronous")
			} else {
				p.printf("    replication:       asynchronous (%s delay)\n", Time(multi.ReplicationLatency()))
			}
		}
	}
}

func formatLine(columns []string) string {
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", indent))
	for i, column := range columns {
		if i == 0 {
			fmt.Fprintf(&b, "%-*s", descWidth, column)
			continue
		}
		fmt.Fprintf(&b, "%*s", columnWidth, column)
	}
	return b.String()
}

func (p *printer) headings() {
	width := 0
	for _, heading := range headings {
		width = max(width, len(heading))
	}
	dashes := make([]string, len(headings))
	for i := range dashes {
		dashes[i] = strings.Repeat("-", width)
	}

	p.println()
	p.title(formatLine(headings))
	p.println(formatLine(dashes))
}

func (p *printer) row(columns ...string) {
	p.println(formatLine(columns))
}

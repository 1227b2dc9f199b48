package cephtools

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ceph/ceph-tools/internal/cache"
)

const evaluationsCacheKey = "evaluations"

// failure modes, in the order of Result.probabilities
var lossModes = []string{"site", "drive", "nre", "rep"}

// OpenMetricsHandler implements the http.Handler interface
type OpenMetricsHandler struct {
	defaultTimeout time.Duration
	models         []Model
	period         float64
	evaluations    *cache.Memory[[]Evaluation]
}

// NewOpenMetricsHandler serves the evaluation of models over period. Results
// are computed again once ttl has elapsed.
func NewOpenMetricsHandler(ctx context.Context, models []Model, period float64, ttl time.Duration) *OpenMetricsHandler {
	handler := &OpenMetricsHandler{
		defaultTimeout: 10 * time.Second,
		models:         slices.DeleteFunc(slices.Clone(models), func(m Model) bool { return m == nil }),
		period:         period,
		evaluations:    cache.NewMemory[[]Evaluation](ctx, ttl),
	}

	handler.evaluations.SetDynamic(evaluationsCacheKey, func(ctx context.Context) ([]Evaluation, error) {
		return Evaluate(ctx, handler.models, handler.period)
	})

	return handler
}

// evaluate returns the evaluations over period. Periods other than the
// configured one are cached under their own key.
func (handler *OpenMetricsHandler) evaluate(ctx context.Context, period float64) ([]Evaluation, error) {
	if period == handler.period {
		return handler.evaluations.Get(ctx, evaluationsCacheKey)
	}

	key := evaluationsCacheKey + "/" + strconv.FormatFloat(period, 'f', -1, 64)
	return handler.evaluations.GetOrSet(ctx, key, func(ctx context.Context) ([]Evaluation, error) {
		return Evaluate(ctx, handler.models, period)
	})
}

// ServeHTTP implements the http.Handler interface. It evaluates every model
// (or reuses the cached evaluations) and writes them in the response. The
// period query parameter overrides the period, in hours.
func (handler *OpenMetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	metrics := make(chan *Metric)

	reqAttr := requestAttr(r)

	period := handler.period
	if raw := r.URL.Query().Get("period"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, fmt.Sprintf("invalid period %q", raw), http.StatusBadRequest)
			return
		}
		period = parsed
	}

	baseLabels := map[string]string{
		"period": strconv.FormatFloat(period, 'f', -1, 64),
	}

	errg, errgctx := errgroup.WithContext(r.Context())
	errgctx, cancel := context.WithTimeout(errgctx, handler.defaultTimeout)
	defer cancel()

	errg.Go(func() error {
		defer close(metrics)

		send := func(metric *Metric) error {
			select {
			case metrics <- metric:
				return nil
			case <-errgctx.Done():
				return errgctx.Err()
			}
		}

		evaluations, err := handler.evaluate(errgctx, period)
		if err != nil {
			return err
		}

		for _, evaluation := range evaluations {
			for _, metric := range NewEvaluationMetrics(evaluation) {
				if err := send(metric.SetLabels(MergeLabels(metric.Labels, baseLabels))); err != nil {
					return err
				}
			}
		}

		if err := send(&Metric{
			Name:   "rely_evaluation_duration_ms",
			Labels: baseLabels,
			Value:  float64(time.Since(start).Milliseconds()),
		}); err != nil {
			return err
		}

		return send(&Metric{
			Name:   "rely_models",
			Labels: baseLabels,
			Value:  float64(len(evaluations)),
		})
	})

	errg.Go(func() error {
		return writeMetrics(errgctx, w, metrics)
	})

	err := errg.Wait()
	if err != nil {
		slog.Error("failed to evaluate models", "err", err.Error(), reqAttr)
		http.Error(w, err.Error(), 500)
		return
	}

	slog.Info("models have been successfully evaluated", reqAttr, "duration_ms", time.Since(start).Milliseconds())
}

// writeMetrics write all metrics sent over the channel and write them on the writer.
// Metrics labels are sorted lexicographically before being written.
func writeMetrics(ctx context.Context, w io.Writer, metrics chan *Metric) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case metric, ok := <-metrics:
			if !ok {
				return nil
			}

			if metric == nil {
				slog.Warn("discarding nil metric")
				continue
			}
			if err := writeMetric(w, metric); err != nil {
				return fmt.Errorf("failed to write metric on writer: %w", err)
			}
		}
	}
}

func writeMetric(w io.Writer, metric *Metric) error {
	metric = metric.SanitizeLabels()

	// sort labels in lexicographical order
	labels := make([]string, 0, len(metric.Labels))
	for labelName, labelValue := range metric.Labels {
		labels = append(labels, fmt.Sprintf(`%s=%q`, labelName, labelValue))
	}
	slices.SortFunc(labels, strings.Compare)

	// probabilities go far below what a fixed precision can show
	_, err := fmt.Fprintf(w, "%s{%s} %s\n", metric.Name, strings.Join(labels, ","), strconv.FormatFloat(metric.Value, 'g', -1, 64))
	if err != nil {
		return fmt.Errorf("writing metric %s failed: %w", metric.Name, err)
	}

	return nil
}

// requestAttr ties the logs of a scrape to the request id set by a proxy in
// front of the exporter, if any.
func requestAttr(r *http.Request) slog.Attr {
	if id := r.Header.Get("X-Request-Id"); id != "" {
		return slog.String("request_id", id)
	}
	return slog.Attr{}
}

// Metric olds the name and value of a measurement in addition to its labels.
type Metric struct {
	Name   string
	Labels map[string]string
	Value  float64
}

func (m *Metric) AddLabel(key, value string) *Metric {
	m.Labels = MergeLabels(
		m.Labels,
		map[string]string{
			key: value,
		},
	)
	return m
}

func (m *Metric) SetLabels(l map[string]string) *Metric {
	m.Labels = l
	return m
}

func (m *Metric) SanitizeLabels() *Metric {
	newLabels := make(map[string]string)
	invalidChars := []string{".", "/", "-", ":", ";"}
	for label, value := range m.Labels {
		for _, char := range invalidChars {
			label = strings.ReplaceAll(label, char, "_")
		}
		newLabels[label] = value
	}
	m.Labels = newLabels
	return m
}

// MergeLabels returns a new label set. Later sets win.
func MergeLabels(labels ...map[string]string) map[string]string {
	merged := make(map[string]string)
	for _, l := range labels {
		maps.Copy(merged, l)
	}
	return merged
}

// NewEvaluationMetrics returns the durability, per mode loss probabilities and
// expected losses of an evaluation.
func NewEvaluationMetrics(evaluation Evaluation) []*Metric {
	if evaluation.Model == nil {
		return nil
	}

	labels := map[string]string{
		"model": evaluation.Model.Description(),
		"kind":  evaluation.Model.Kind().String(),
	}
	result := evaluation.Result

	metrics := []*Metric{
		{Name: "rely_durability", Value: result.Durability},
		{Name: "rely_expected_loss_per_pib", Value: result.LossPerPiB()},
	}

	probabilities, losses := result.probabilities(), result.losses()
	for i, mode := range lossModes {
		metrics = append(metrics,
			&Metric{Name: "rely_loss_probability", Value: probabilities[i]},
			&Metric{Name: "rely_expected_loss_bytes", Value: probabilities[i] * losses[i]},
		)
		metrics[len(metrics)-2].AddLabel("mode", mode)
		metrics[len(metrics)-1].AddLabel("mode", mode)
	}

	for _, metric := range metrics {
		metric.Labels = MergeLabels(labels, metric.Labels)
	}

	return metrics
}

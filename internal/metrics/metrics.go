// Package metrics counts Chef requests and absorbed failures for a single
// CLI run and prints them in the Prometheus text format.
package metrics

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/ylchen07/chefkit/pkg/chef"
	"github.com/ylchen07/chefkit/pkg/session"
)

// resultError labels requests that never got an answer
const resultError = "error"

// Collector holds all Prometheus metrics for chefkit
type Collector struct {
	registry *prometheus.Registry

	// Request metrics
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	// Absorbed failures (dropped pages, undecryptable fields)
	diagnosticsTotal *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry, so several
// collectors never clash
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chefkit_request_duration_seconds",
				Help:    "Duration of Chef server requests in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),

		requestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefkit_request_total",
				Help: "Total number of Chef server requests by status class",
			},
			[]string{"method", "status"},
		),

		diagnosticsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefkit_diagnostics_total",
				Help: "Failures that were skipped instead of returned, by kind",
			},
			[]string{"kind"},
		),
	}
}

// Observe records an absorbed failure. It is meant for chef.WithDiagnostics.
func (c *Collector) Observe(d chef.Diagnostic) {
	c.diagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
}

// RecordRequest records a request duration and outcome
func (c *Collector) RecordRequest(method string, duration time.Duration, resp *session.Response, err error) {
	c.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
	c.requestTotal.WithLabelValues(method, statusClass(resp, err)).Inc()
}

// Value returns the current value of a counter, or 0 when it has not been
// touched. Labels are given as name/value pairs.
func (c *Collector) Value(name string, labels ...string) (float64, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return 0, fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m.GetCounter().GetValue(), nil
			}
		}
	}
	return 0, nil
}

// Dump writes every metric in the Prometheus text format
func (c *Collector) Dump(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

func matchLabels(m *dto.Metric, labels []string) bool {
	want := make(map[string]string, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		want[labels[i]] = labels[i+1]
	}
	found := 0
	for _, lp := range m.GetLabel() {
		if v, ok := want[lp.GetName()]; ok {
			if v != lp.GetValue() {
				return false
			}
			found++
		}
	}
	return found == len(want)
}

// statusClass maps an outcome to "2xx", "4xx", "5xx" or "error"
func statusClass(resp *session.Response, err error) string {
	if err != nil || resp == nil {
		return resultError
	}
	return strconv.Itoa(resp.StatusCode/100) + "xx"
}

// InstrumentRequester wraps next so every call is counted and timed
func (c *Collector) InstrumentRequester(next chef.Requester) chef.Requester {
	return &instrumented{next: next, c: c}
}

type instrumented struct {
	next chef.Requester
	c    *Collector
}

func (i *instrumented) Get(ctx context.Context, rawURL string, params url.Values) (*session.Response, error) {
	start := time.Now()
	resp, err := i.next.Get(ctx, rawURL, params)
	i.c.RecordRequest("GET", time.Since(start), resp, err)
	return resp, err
}

func (i *instrumented) Post(ctx context.Context, rawURL string, params url.Values, body any) (*session.Response, error) {
	start := time.Now()
	resp, err := i.next.Post(ctx, rawURL, params, body)
	i.c.RecordRequest("POST", time.Since(start), resp, err)
	return resp, err
}

func (i *instrumented) Put(ctx context.Context, rawURL string, body any) (*session.Response, error) {
	start := time.Now()
	resp, err := i.next.Put(ctx, rawURL, body)
	i.c.RecordRequest("PUT", time.Since(start), resp, err)
	return resp, err
}

func (i *instrumented) Delete(ctx context.Context, rawURL string) (*session.Response, error) {
	start := time.Now()
	resp, err := i.next.Delete(ctx, rawURL)
	i.c.RecordRequest("DELETE", time.Since(start), resp, err)
	return resp, err
}

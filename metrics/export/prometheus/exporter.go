package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goAccount "github.com/MrEthical07/goAccount"
	"github.com/MrEthical07/goAccount/metrics/export/internaldefs"
)

// Source is what the exporter reads on every scrape. [*goAccount.Engine]
// satisfies it.
type Source interface {
	MetricsSnapshot() goAccount.MetricsSnapshot
	AuditDropped() uint64
}

// Gauge is an extra series sampled on every scrape, such as pool sizes.
type Gauge struct {
	Name  string
	Help  string
	Value func() float64
}

// Exporter renders a [Source] plus optional gauges.
type Exporter struct {
	source Source
	gauges []Gauge
}

// NewExporter returns an exporter reading from source.
func NewExporter(source Source, gauges ...Gauge) *Exporter {
	return &Exporter{source: source, gauges: gauges}
}

// Handler serves [Exporter.Render].
func (e *Exporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(e.Render()))
	})
}

// Render returns the current exposition. A disabled engine with no gauges
// renders as the empty string.
func (e *Exporter) Render() string {
	if e == nil || e.source == nil {
		return ""
	}

	snapshot := e.source.MetricsSnapshot()
	dropped := e.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 && len(e.gauges) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(4096)

	if len(snapshot.Counters) > 0 {
		for _, def := range internaldefs.CounterDefs {
			header(&b, def.Name, def.Help, "counter")
			sample(&b, def.Name, "", strconv.FormatUint(snapshot.Counters[def.ID], 10))
		}
	}
	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		writeHistogram(&b, def, internaldefs.CumulativeBuckets(raw))
	}

	header(&b, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter")
	sample(&b, internaldefs.AuditDroppedName, "", strconv.FormatUint(dropped, 10))

	for _, g := range e.gauges {
		if g.Value == nil {
			continue
		}
		header(&b, g.Name, g.Help, "gauge")
		sample(&b, g.Name, "", strconv.FormatFloat(g.Value(), 'g', -1, 64))
	}

	return b.String()
}

func writeHistogram(b *strings.Builder, def internaldefs.HistogramDef, cumulative [8]uint64) {
	header(b, def.Name, def.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		sample(b, def.Name+"_bucket", `le="`+le+`"`, strconv.FormatUint(cumulative[i], 10))
	}
	sample(b, def.Name+"_count", "", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
	// The engine keeps bucket counts only.
	sample(b, def.Name+"_sum", "", "0")
}

func header(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func sample(b *strings.Builder, name, labels, value string) {
	b.WriteString(name)
	if labels != "" {
		b.WriteString("{" + labels + "}")
	}
	b.WriteString(" " + value + "\n")
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, `\`, `\\`)
	return strings.ReplaceAll(help, "\n", `\n`)
}

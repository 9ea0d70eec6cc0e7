package render

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/choropleth/internal/choropleth"
)

// LegendEntry is one legend bucket with a printable label.
type LegendEntry struct {
	Index int     `json:"index" yaml:"index"`
	Low   float64 `json:"low" yaml:"low"`
	High  float64 `json:"high" yaml:"high"`
	Color string  `json:"color" yaml:"color"`
	Label string  `json:"label" yaml:"label"`
}

// LegendDoc is the legend as served by the API and printed by the CLI.
type LegendDoc struct {
	Buckets     []LegendEntry      `json:"buckets" yaml:"buckets"`
	Ticks       []float64          `json:"ticks" yaml:"ticks"`
	TickLabels  []string           `json:"tick_labels" yaml:"tick_labels"`
	NoDataColor string             `json:"no_data_color" yaml:"no_data_color"`
	Summary     choropleth.Summary `json:"summary" yaml:"summary"`
}

// Legend describes m's legend buckets and axis ticks.
func Legend(m *choropleth.Map) LegendDoc {
	doc := LegendDoc{
		Buckets:     make([]LegendEntry, len(m.Legend)),
		Ticks:       m.Ticks(),
		NoDataColor: m.NoDataColor(),
		Summary:     m.Summary,
	}
	if doc.Ticks == nil {
		doc.Ticks = []float64{}
	}
	doc.TickLabels = make([]string, len(doc.Ticks))
	for i, t := range doc.Ticks {
		doc.TickLabels[i] = choropleth.FormatTick(t)
	}
	for i, b := range m.Legend {
		doc.Buckets[i] = LegendEntry{
			Index: b.Index,
			Low:   b.Low,
			High:  b.High,
			Color: b.Color,
			Label: choropleth.FormatTick(b.Low) + " - " + choropleth.FormatTick(b.High),
		}
	}
	return doc
}

// WriteLegendTable prints the legend as an aligned text table.
func WriteLegendTable(out io.Writer, doc LegendDoc) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BUCKET\tCOLOR\tLOW\tHIGH\tLABEL")
	_, _ = fmt.Fprintln(w, "------\t-----\t---\t----\t-----")
	for _, b := range doc.Buckets {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			b.Index, b.Color, choropleth.FormatValue(b.Low), choropleth.FormatValue(b.High), b.Label)
	}
	_, _ = fmt.Fprintf(w, "-\t%s\t\t\tno data\n", doc.NoDataColor)
	if doc.Summary.Count > 0 {
		_, _ = fmt.Fprintf(w, "\nValues:\t%d\n", doc.Summary.Count)
		_, _ = fmt.Fprintf(w, "Mean:\t%s\n", choropleth.FormatValue(doc.Summary.Mean))
		_, _ = fmt.Fprintf(w, "Median:\t%s\n", choropleth.FormatValue(doc.Summary.Median))
	}
	return eris.Wrap(w.Flush(), "render: write legend table")
}

// WriteLegendJSON writes the legend as indented JSON.
func WriteLegendJSON(out io.Writer, doc LegendDoc) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(doc), "render: write legend json")
}

// WriteLegendYAML writes the legend as YAML.
func WriteLegendYAML(out io.Writer, doc LegendDoc) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return eris.Wrap(err, "render: write legend yaml")
	}
	return eris.Wrap(enc.Close(), "render: close yaml encoder")
}

// WriteLegend dispatches on format: table, json or yaml.
func WriteLegend(out io.Writer, doc LegendDoc, format string) error {
	switch format {
	case "", "table":
		return WriteLegendTable(out, doc)
	case "json":
		return WriteLegendJSON(out, doc)
	case "yaml", "yml":
		return WriteLegendYAML(out, doc)
	default:
		return eris.Errorf("render: unknown legend format %q", format)
	}
}

package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/template"

	"github.com/hawkshop/hawker/internal/product"
)

// WriteJSON writes the full aggregation result to the provided writer in JSON format.
func WriteJSON(w io.Writer, result *product.AggregationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text report to the provided writer.
func WriteText(w io.Writer, result *product.AggregationResult) error {
	const textTmpl = `Hawker Search Report
--------------------
Query:         {{.Query}}
Time:          {{.CreatedAt.Format "2006-01-02 15:04:05"}}
Fetch Time:    {{.Metadata.FetchTime}}ms
Results:       {{.Metadata.TotalResults}}
Ranked By AI:  {{.Metadata.RankedByAI}}
Links:         {{.Metadata.DirectLinks}} direct, {{.Metadata.RedirectLinks}} redirect

Sources:
{{- range .Metadata.Sources}}
  {{.Name}} ({{.Kind}}): {{.Count}} items, {{.Status}}{{if .Err}} ({{.Err}}){{end}}
{{- else}}
  None
{{- end}}

Top Pick:      {{if .Metadata.TopStore}}{{.Metadata.TopStore}} @ {{printf "%.2f" .Metadata.TopPrice}}{{else}}None{{end}}

{{.Summary}}

Items:
{{- range $i, $p := .Items}}
  {{inc $i}}. {{$p.Title}} | {{$p.Store}} | {{printf "%.2f" $p.Price}}{{if $p.Scored}} | score {{printf "%.3f" $p.CompositeScore}}{{end}}
{{- else}}
  None
{{- end}}
`

	t, err := template.New("textReport").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	if err := t.Execute(w, result); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	return nil
}

// WriteCSV writes the ranked items as CSV rows to the provided writer.
func WriteCSV(w io.Writer, result *product.AggregationResult) error {
	cw := csv.NewWriter(w)

	header := []string{"title", "store", "price", "rating", "reviews", "link", "source", "composite_score"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, p := range result.Items {
		score := ""
		if p.Scored {
			score = strconv.FormatFloat(p.CompositeScore, 'f', 4, 64)
		}
		row := []string{
			p.Title,
			p.Store,
			strconv.FormatFloat(p.Price, 'f', 2, 64),
			strconv.FormatFloat(p.Rating, 'f', 1, 64),
			strconv.Itoa(p.Reviews),
			p.Link,
			p.Source,
			score,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Package report defines the stable scan output schema.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	cdx "github.com/CycloneDX/cyclonedx-go"

	"github.com/example/sdkscan/internal/aggregate"
	"github.com/example/sdkscan/internal/signature"
)

// SchemaVersion identifies the serialized report layout. Bump only on
// breaking changes to the JSON shape.
const SchemaVersion = "1"

// Detection is the serialized form of one provider conclusion.
type Detection struct {
	Provider      string                `json:"provider"`
	Mechanisms    []signature.Mechanism `json:"mechanisms"`
	Files         []string              `json:"files"`
	Confidence    float64               `json:"confidence"`
	EvidenceCount int                   `json:"evidence_count"`
	Weak          bool                  `json:"weak"`
}

// ScanReport is the sole artifact handed to presentation layers. It is
// immutable once produced; given identical detections the serialized form
// is byte-identical.
type ScanReport struct {
	SchemaVersion    string      `json:"schema_version"`
	RepositoryRoot   string      `json:"repository_root"`
	Detections       []Detection `json:"detections"`
	ScannedFileCount int         `json:"scanned_file_count"`
	SkippedFileCount int         `json:"skipped_file_count"`
}

// New assembles a report from finalized detections, ordering them by
// confidence descending with provider name as the tie-break.
func New(root string, detections []aggregate.Detection, scanned, skipped int) ScanReport {
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		out = append(out, Detection{
			Provider:      d.Provider,
			Mechanisms:    append([]signature.Mechanism(nil), d.Mechanisms...),
			Files:         append([]string(nil), d.Files...),
			Confidence:    d.Confidence,
			EvidenceCount: d.EvidenceCount,
			Weak:          d.Weak,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Provider < out[j].Provider
	})

	return ScanReport{
		SchemaVersion:    SchemaVersion,
		RepositoryRoot:   root,
		Detections:       out,
		ScannedFileCount: scanned,
		SkippedFileCount: skipped,
	}
}

// MaxConfidence returns the highest detection confidence, or 0 when the
// report is empty.
func (r ScanReport) MaxConfidence() float64 {
	max := 0.0
	for _, d := range r.Detections {
		if d.Confidence > max {
			max = d.Confidence
		}
	}
	return max
}

// WriteJSON serializes the stable schema form.
func (r ScanReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// ParseJSON reads a previously serialized report.
func ParseJSON(data []byte) (ScanReport, error) {
	var r ScanReport
	if err := json.Unmarshal(data, &r); err != nil {
		return ScanReport{}, fmt.Errorf("parse report: %w", err)
	}
	if r.SchemaVersion != SchemaVersion {
		return ScanReport{}, fmt.Errorf("unsupported report schema version %q", r.SchemaVersion)
	}
	return r, nil
}

// WriteTable renders a human-readable summary.
func (r ScanReport) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tCONFIDENCE\tMECHANISMS\tFILES\tEVIDENCE")
	for _, d := range r.Detections {
		name := d.Provider
		if d.Weak {
			name += " (weak)"
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%d\t%d\t%d\n", name, d.Confidence, len(d.Mechanisms), len(d.Files), d.EvidenceCount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d detections, %d files scanned, %d skipped\n",
		len(r.Detections), r.ScannedFileCount, r.SkippedFileCount)
	return err
}

// WriteBOM serializes the detections as a CycloneDX BOM, one service per
// detected provider.
func (r ScanReport) WriteBOM(w io.Writer) error {
	services := make([]cdx.Service, 0, len(r.Detections))
	for _, d := range r.Detections {
		props := []cdx.Property{
			{Name: "sdkscan:confidence", Value: fmt.Sprintf("%.4f", d.Confidence)},
			{Name: "sdkscan:evidence_count", Value: fmt.Sprintf("%d", d.EvidenceCount)},
			{Name: "sdkscan:weak", Value: fmt.Sprintf("%t", d.Weak)},
		}
		for _, mech := range d.Mechanisms {
			props = append(props, cdx.Property{Name: "sdkscan:mechanism", Value: string(mech)})
		}
		services = append(services, cdx.Service{
			Name:       d.Provider,
			Properties: &props,
		})
	}

	bom := cdx.NewBOM()
	bom.Services = &services

	encoder := cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON)
	encoder.SetPretty(true)
	return encoder.Encode(bom)
}

package aggregate

import (
	"math"
	"reflect"
	"testing"

	"github.com/example/sdkscan/internal/match"
	"github.com/example/sdkscan/internal/signature"
)

func finding(provider string, mech signature.Mechanism, file string, confidence float64) match.Finding {
	return match.Finding{Provider: provider, Mechanism: mech, File: file, Confidence: confidence}
}

func TestAggregateMergesProviderAcrossFiles(t *testing.T) {
	findings := []match.Finding{
		finding("openai", signature.MechanismSDKImport, "a.py", 0.8),
		finding("openai", signature.MechanismRawHTTPEndpoint, "b.py", 0.7),
	}

	detections := Aggregate(findings, DefaultOptions())
	if len(detections) != 1 {
		t.Fatalf("expected one merged detection, got %d", len(detections))
	}

	d := detections[0]
	if d.Provider != "openai" {
		t.Fatalf("provider %s, want openai", d.Provider)
	}
	if !reflect.DeepEqual(d.Files, []string{"a.py", "b.py"}) {
		t.Fatalf("files %v, want both contributing files", d.Files)
	}
	if len(d.Mechanisms) != 2 {
		t.Fatalf("mechanisms %v, want union of both", d.Mechanisms)
	}
	if d.EvidenceCount != 2 {
		t.Fatalf("evidence count %d, want 2", d.EvidenceCount)
	}

	// base 0.8 lifted once by 0.7*0.3.
	want := 1 - (1-0.8)*(1-0.7*0.3)
	if math.Abs(d.Confidence-want) > 1e-9 {
		t.Fatalf("confidence %v, want %v", d.Confidence, want)
	}
}

func TestRepeatedMechanismDoesNotInflateConfidence(t *testing.T) {
	base := Aggregate([]match.Finding{
		finding("stripe", signature.MechanismSDKImport, "a.py", 0.8),
	}, DefaultOptions())

	repeated := Aggregate([]match.Finding{
		finding("stripe", signature.MechanismSDKImport, "a.py", 0.8),
		finding("stripe", signature.MechanismSDKImport, "b.py", 0.8),
		finding("stripe", signature.MechanismSDKImport, "c.py", 0.6),
	}, DefaultOptions())

	if repeated[0].Confidence != base[0].Confidence {
		t.Fatalf("repeated same-mechanism evidence changed confidence: %v vs %v",
			repeated[0].Confidence, base[0].Confidence)
	}
	if repeated[0].EvidenceCount != 3 {
		t.Fatalf("evidence count %d, want 3", repeated[0].EvidenceCount)
	}
}

func TestNewMechanismStrictlyIncreasesConfidence(t *testing.T) {
	findings := []match.Finding{
		finding("stripe", signature.MechanismSDKImport, "a.py", 0.8),
	}

	previous := Aggregate(findings, DefaultOptions())[0].Confidence
	for _, mech := range []signature.Mechanism{
		signature.MechanismClientConstruction,
		signature.MechanismRawHTTPEndpoint,
		signature.MechanismEnvVarCredential,
	} {
		findings = append(findings, finding("stripe", mech, "a.py", 0.5))
		current := Aggregate(findings, DefaultOptions())[0].Confidence
		if current <= previous {
			t.Fatalf("adding mechanism %s did not increase confidence (%v -> %v)", mech, previous, current)
		}
		if current > 1 {
			t.Fatalf("confidence %v escaped the [0,1] clamp", current)
		}
		previous = current
	}
}

func TestAggregateIsDeterministic(t *testing.T) {
	findings := []match.Finding{
		finding("stripe", signature.MechanismSDKImport, "a.py", 0.8),
		finding("openai", signature.MechanismRawHTTPEndpoint, "b.py", 0.7),
		finding("stripe", signature.MechanismEnvVarCredential, "c.py", 0.35),
		finding("redis", signature.MechanismClientConstruction, "a.py", 0.75),
	}
	reversed := make([]match.Finding, len(findings))
	for i, f := range findings {
		reversed[len(findings)-1-i] = f
	}

	forward := Aggregate(findings, DefaultOptions())
	backward := Aggregate(reversed, DefaultOptions())

	if !reflect.DeepEqual(forward, backward) {
		t.Fatalf("aggregation depends on finding order:\n%+v\n%+v", forward, backward)
	}
}

func TestEnvVarOnlyDetectionIsWeak(t *testing.T) {
	detections := Aggregate([]match.Finding{
		finding("twilio", signature.MechanismEnvVarCredential, "a.py", 0.35),
	}, DefaultOptions())

	d := detections[0]
	if !d.Weak {
		t.Fatal("env-var-only detection must be flagged weak")
	}
	if d.Confidence > DefaultWeakThreshold {
		t.Fatalf("weak detection confidence %v exceeds threshold %v", d.Confidence, DefaultWeakThreshold)
	}
}

func TestWeakCapUsesConfiguredThreshold(t *testing.T) {
	opts := Options{Boost: 0.3, WeakThreshold: 0.2}
	detections := Aggregate([]match.Finding{
		finding("twilio", signature.MechanismEnvVarCredential, "a.py", 0.35),
	}, opts)

	if detections[0].Confidence > 0.2 {
		t.Fatalf("confidence %v exceeds configured weak threshold", detections[0].Confidence)
	}
}

func TestCorroboratedEnvVarIsNotWeak(t *testing.T) {
	detections := Aggregate([]match.Finding{
		finding("twilio", signature.MechanismEnvVarCredential, "a.py", 0.35),
		finding("twilio", signature.MechanismSDKImport, "a.py", 0.8),
	}, DefaultOptions())

	if detections[0].Weak {
		t.Fatal("detection corroborated by an SDK import must not be weak")
	}
}

func TestAggregateOrdersByConfidenceThenProvider(t *testing.T) {
	detections := Aggregate([]match.Finding{
		finding("redis", signature.MechanismSDKImport, "a.py", 0.8),
		finding("stripe", signature.MechanismSDKImport, "a.py", 0.9),
		finding("mongodb", signature.MechanismSDKImport, "a.py", 0.8),
	}, DefaultOptions())

	var got []string
	for _, d := range detections {
		got = append(got, d.Provider)
	}
	want := []string{"stripe", "mongodb", "redis"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ordering %v, want %v", got, want)
	}
}

func TestReaggregationPreservesOrdering(t *testing.T) {
	first := Aggregate([]match.Finding{
		finding("stripe", signature.MechanismSDKImport, "a.py", 0.9),
		finding("stripe", signature.MechanismRawHTTPEndpoint, "a.py", 0.7),
		finding("redis", signature.MechanismClientConstruction, "b.py", 0.75),
		finding("twilio", signature.MechanismEnvVarCredential, "c.py", 0.35),
	}, DefaultOptions())

	// Re-aggregate each detection as a single finding of its combined
	// confidence; the ordering must survive.
	var refolded []match.Finding
	for _, d := range first {
		refolded = append(refolded, finding(d.Provider, d.Mechanisms[0], "", d.Confidence))
	}
	second := Aggregate(refolded, DefaultOptions())

	if len(first) != len(second) {
		t.Fatalf("detection count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Provider != second[i].Provider {
			t.Fatalf("ordering changed at %d: %s vs %s", i, first[i].Provider, second[i].Provider)
		}
	}
}

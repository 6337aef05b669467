// Package aggregate folds per-file findings into per-repository detections.
package aggregate

import (
	"sort"

	"github.com/example/sdkscan/internal/match"
	"github.com/example/sdkscan/internal/signature"
)

const (
	// DefaultBoost scales the confidence lift contributed by each extra
	// distinct mechanism. Calibrated, not derived; kept tunable.
	DefaultBoost = 0.3
	// DefaultWeakThreshold caps detections backed only by env-var names.
	DefaultWeakThreshold = 0.4
)

// Options tunes the confidence combination.
type Options struct {
	Boost         float64
	WeakThreshold float64
}

// DefaultOptions returns the calibrated defaults.
func DefaultOptions() Options {
	return Options{Boost: DefaultBoost, WeakThreshold: DefaultWeakThreshold}
}

// Detection is the merged conclusion that the scanned repository uses a
// provider. Confidence is frozen once Aggregate returns.
type Detection struct {
	Provider      string
	Mechanisms    []signature.Mechanism
	Files         []string
	Confidence    float64
	EvidenceCount int
	Weak          bool
}

// Aggregate groups findings by provider and combines their confidences.
//
// The combination starts from the single strongest finding, then applies a
// diminishing-returns lift for each additional distinct mechanism: repeated
// evidence of one mechanism never raises confidence beyond its first
// occurrence, while independent corroborating mechanisms raise it
// super-additively. The result is deterministic for any input order and
// monotonic in added evidence.
func Aggregate(findings []match.Finding, opts Options) []Detection {
	if opts.Boost == 0 {
		opts.Boost = DefaultBoost
	}
	if opts.WeakThreshold == 0 {
		opts.WeakThreshold = DefaultWeakThreshold
	}

	type bucket struct {
		bestByMechanism map[signature.Mechanism]float64
		files           map[string]struct{}
		count           int
	}

	buckets := map[string]*bucket{}
	for _, f := range findings {
		b, ok := buckets[f.Provider]
		if !ok {
			b = &bucket{
				bestByMechanism: map[signature.Mechanism]float64{},
				files:           map[string]struct{}{},
			}
			buckets[f.Provider] = b
		}
		if f.Confidence > b.bestByMechanism[f.Mechanism] {
			b.bestByMechanism[f.Mechanism] = f.Confidence
		}
		if f.File != "" {
			b.files[f.File] = struct{}{}
		}
		b.count++
	}

	detections := make([]Detection, 0, len(buckets))
	for provider, b := range buckets {
		d := Detection{
			Provider:      provider,
			Mechanisms:    sortedMechanisms(b.bestByMechanism),
			Files:         sortedKeys(b.files),
			EvidenceCount: b.count,
		}
		d.Confidence = combine(b.bestByMechanism, opts.Boost)

		onlyEnv := len(b.bestByMechanism) == 1 && b.bestByMechanism[signature.MechanismEnvVarCredential] > 0
		if onlyEnv {
			d.Weak = true
			if d.Confidence > opts.WeakThreshold {
				d.Confidence = opts.WeakThreshold
			}
		}

		detections = append(detections, d)
	}

	sort.Slice(detections, func(i, j int) bool {
		if detections[i].Confidence != detections[j].Confidence {
			return detections[i].Confidence > detections[j].Confidence
		}
		return detections[i].Provider < detections[j].Provider
	})

	return detections
}

// combine implements the diminishing-returns curve:
// start from the best single confidence, then for each extra distinct
// mechanism m apply combined = 1 - (1-combined)*(1 - m*boost).
func combine(best map[signature.Mechanism]float64, boost float64) float64 {
	base, baseMech := 0.0, signature.Mechanism("")
	// Iterate in declared order so the base pick is deterministic even when
	// two mechanisms tie on weight.
	for _, mech := range signature.Mechanisms {
		if w, ok := best[mech]; ok && w > base {
			base, baseMech = w, mech
		}
	}

	combined := base
	for _, mech := range signature.Mechanisms {
		w, ok := best[mech]
		if !ok || mech == baseMech {
			continue
		}
		combined = 1 - (1-combined)*(1-w*boost)
	}

	if combined > 1 {
		combined = 1
	}
	if combined < 0 {
		combined = 0
	}
	return combined
}

func sortedMechanisms(best map[signature.Mechanism]float64) []signature.Mechanism {
	out := make([]signature.Mechanism, 0, len(best))
	for _, mech := range signature.Mechanisms {
		if _, ok := best[mech]; ok {
			out = append(out, mech)
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

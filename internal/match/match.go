// Package match resolves evidence tokens against the signature registry.
package match

import (
	"github.com/example/sdkscan/internal/evidence"
	"github.com/example/sdkscan/internal/signature"
)

// Finding is one matched occurrence of a provider signature in one file.
// Findings are immutable once emitted.
type Finding struct {
	Provider   string
	Mechanism  signature.Mechanism
	File       string
	Line       int
	Confidence float64
}

// Match resolves every token against the registry. Matching is stateless
// and order-independent; callers may run it one worker per file against the
// shared read-only registry.
//
// When one token matches several entries of the same provider only the
// highest-weight entry is kept, so a single occurrence never counts twice
// for one provider. Matches across different providers are all kept;
// disambiguation happens at aggregation through corroborating evidence.
func Match(reg *signature.Registry, tokens []evidence.Token) []Finding {
	var findings []Finding
	for _, tok := range tokens {
		matches := reg.Lookup(tok.Language, tok.Mechanism, tok.Text)
		if len(matches) == 0 {
			continue
		}

		best := map[string]*signature.Entry{}
		var order []string
		for _, m := range matches {
			prev, seen := best[m.Entry.Provider]
			if !seen {
				order = append(order, m.Entry.Provider)
			}
			if !seen || m.Entry.Weight > prev.Weight {
				best[m.Entry.Provider] = m.Entry
			}
		}

		for _, provider := range order {
			entry := best[provider]
			findings = append(findings, Finding{
				Provider:   provider,
				Mechanism:  tok.Mechanism,
				File:       tok.File,
				Line:       tok.Line,
				Confidence: entry.Weight,
			})
		}
	}
	return findings
}

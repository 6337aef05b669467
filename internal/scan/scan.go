// Package scan orchestrates the detection pipeline: files fan out to a
// worker pool, findings fan in through a single aggregation pass.
package scan

import (
	"context"
	"os"
	"runtime"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/example/sdkscan/internal/aggregate"
	"github.com/example/sdkscan/internal/evidence"
	"github.com/example/sdkscan/internal/match"
	"github.com/example/sdkscan/internal/report"
	"github.com/example/sdkscan/internal/signature"
	"github.com/example/sdkscan/internal/walk"
)

// DefaultPerFileTimeout bounds extraction of one pathological file so it
// becomes a skip instead of stalling the scan.
const DefaultPerFileTimeout = 5 * time.Second

// SkipReason classifies why a file was excluded from the scan.
type SkipReason string

const (
	SkipUnsupported SkipReason = "unsupported-language"
	SkipUnreadable  SkipReason = "unreadable"
	SkipEncoding    SkipReason = "encoding"
	SkipTimeout     SkipReason = "timeout"
	SkipFiltered    SkipReason = "language-filtered"
)

// Scanner wires the read-only registry and extractor dispatch into a
// parallel scan. The registry is the only shared state across workers.
type Scanner struct {
	Registry       *signature.Registry
	Dispatch       *evidence.Dispatch
	Parallelism    int
	PerFileTimeout time.Duration
	// Languages restricts extraction to an allowlist; nil means all.
	Languages map[signature.Language]bool
	Aggregate aggregate.Options
	// OnSkip, when set, observes every skipped file. Verbose logging only;
	// skip reasons are not part of the report schema.
	OnSkip func(path string, reason SkipReason)
}

type fileResult struct {
	findings []match.Finding
	skipped  bool
}

// Scan runs the pipeline over every file the source yields and returns the
// finalized report. Detections are only finalized after all files are
// processed. Per-file read, encoding, and timeout failures become skips;
// the only scan-aborting failures are an unusable source or cancellation.
func (s *Scanner) Scan(ctx context.Context, root string, source walk.Source) (report.ScanReport, error) {
	parallelism := s.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	timeout := s.PerFileTimeout
	if timeout <= 0 {
		timeout = DefaultPerFileTimeout
	}

	files := make(chan walk.File, parallelism)
	results := make(chan fileResult, parallelism)

	walkErr := make(chan error, 1)
	go func() {
		defer close(files)
		walkErr <- source.Walk(ctx, func(f walk.File) error {
			select {
			case files <- f:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range files {
				// Cooperative abort point between files.
				if ctx.Err() != nil {
					return
				}
				results <- s.scanFile(f, timeout)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// Single-writer reduction: the only synchronization point.
	var findings []match.Finding
	scanned, skipped := 0, 0
	for res := range results {
		if res.skipped {
			skipped++
			continue
		}
		scanned++
		findings = append(findings, res.findings...)
	}

	if err := ctx.Err(); err != nil {
		return report.ScanReport{}, err
	}
	if err := <-walkErr; err != nil {
		return report.ScanReport{}, err
	}

	detections := aggregate.Aggregate(findings, s.Aggregate)
	return report.New(root, detections, scanned, skipped), nil
}

func (s *Scanner) scanFile(f walk.File, timeout time.Duration) fileResult {
	skip := func(reason SkipReason) fileResult {
		if s.OnSkip != nil {
			s.OnSkip(f.Path, reason)
		}
		return fileResult{skipped: true}
	}

	src, err := os.ReadFile(f.Path)
	if err != nil {
		return skip(SkipUnreadable)
	}
	if !textContent(src) {
		return skip(SkipEncoding)
	}

	var extractor evidence.Extractor
	if f.Language != "" {
		extractor = s.Dispatch.ForLanguage(f.Language)
	} else {
		extractor = s.Dispatch.ForFile(f.Path, src)
	}
	if extractor == nil {
		return skip(SkipUnsupported)
	}
	if s.Languages != nil && !s.Languages[extractor.Language()] {
		return skip(SkipFiltered)
	}

	// Extraction runs to completion in its own goroutine; on timeout the
	// result is discarded and the file counts as skipped.
	done := make(chan []match.Finding, 1)
	go func() {
		tokens := extractor.Extract(f.Path, src)
		done <- match.Match(s.Registry, tokens)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case findings := <-done:
		return fileResult{findings: findings}
	case <-timer.C:
		return skip(SkipTimeout)
	}
}

// textContent rejects binary or undecodable input.
func textContent(src []byte) bool {
	if len(src) == 0 {
		return true
	}
	sample := src
	truncated := false
	if len(sample) > 8192 {
		sample = sample[:8192]
		truncated = true
	}
	for _, b := range sample {
		if b == 0 {
			return false
		}
	}
	if truncated {
		// Do not judge validity on a rune cut at the sample boundary.
		return true
	}
	return utf8.Valid(sample)
}

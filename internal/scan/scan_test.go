package scan

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/example/sdkscan/internal/evidence"
	"github.com/example/sdkscan/internal/report"
	"github.com/example/sdkscan/internal/signature"
	"github.com/example/sdkscan/internal/walk"
)

// sliceSource yields a fixed list of files, standing in for the directory
// walker.
type sliceSource []string

func (s sliceSource) Walk(ctx context.Context, emit func(walk.File) error) error {
	for _, path := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(walk.File{Path: path}); err != nil {
			return err
		}
	}
	return nil
}

func newScanner(t *testing.T) *Scanner {
	t.Helper()
	registry, err := signature.Builtin()
	if err != nil {
		t.Fatalf("builtin registry: %v", err)
	}
	return &Scanner{
		Registry: registry,
		Dispatch: evidence.NewDispatch(),
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func findDetection(rep report.ScanReport, provider string) *report.Detection {
	for i := range rep.Detections {
		if rep.Detections[i].Provider == provider {
			return &rep.Detections[i]
		}
	}
	return nil
}

func TestScanCorroboratedMechanismsRaiseConfidence(t *testing.T) {
	dir := t.TempDir()
	full := writeFile(t, dir, "full.py", `import stripe

stripe.Charge.create(amount=2000, currency="usd")
base = "https://api.stripe.com"
`)

	importOnlyDir := t.TempDir()
	importOnly := writeFile(t, importOnlyDir, "lean.py", "import stripe\n")

	scanner := newScanner(t)
	ctx := context.Background()

	fullReport, err := scanner.Scan(ctx, dir, sliceSource{full})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	leanReport, err := scanner.Scan(ctx, importOnlyDir, sliceSource{importOnly})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	fullDet := findDetection(fullReport, "stripe")
	if fullDet == nil {
		t.Fatalf("no stripe detection in %+v", fullReport.Detections)
	}

	wantMechs := []signature.Mechanism{
		signature.MechanismSDKImport,
		signature.MechanismClientConstruction,
		signature.MechanismRawHTTPEndpoint,
	}
	if !reflect.DeepEqual(fullDet.Mechanisms, wantMechs) {
		t.Fatalf("mechanisms %v, want %v", fullDet.Mechanisms, wantMechs)
	}

	leanDet := findDetection(leanReport, "stripe")
	if leanDet == nil {
		t.Fatal("no stripe detection for import-only file")
	}
	if fullDet.Confidence <= leanDet.Confidence {
		t.Fatalf("corroborated confidence %v should exceed import-only %v",
			fullDet.Confidence, leanDet.Confidence)
	}
}

func TestScanMergesProviderAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	sdk := writeFile(t, dir, "service.py", `from openai import OpenAI

client = OpenAI(api_key=key)
`)
	raw := writeFile(t, dir, "fallback.py", `import requests

requests.post("https://api.openai.com/v1/chat/completions")
`)

	scanner := newScanner(t)
	rep, err := scanner.Scan(context.Background(), dir, sliceSource{sdk, raw})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	det := findDetection(rep, "openai")
	if det == nil {
		t.Fatalf("no openai detection in %+v", rep.Detections)
	}
	if len(det.Files) != 2 {
		t.Fatalf("files %v, want both contributing files merged", det.Files)
	}
}

func TestScanUnreadableFileBecomesSkip(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "ok.py", "import stripe\n")
	missing := filepath.Join(dir, "gone.py")

	var skippedPaths []string
	scanner := newScanner(t)
	scanner.Parallelism = 1
	scanner.OnSkip = func(path string, reason SkipReason) {
		if reason == SkipUnreadable {
			skippedPaths = append(skippedPaths, path)
		}
	}

	rep, err := scanner.Scan(context.Background(), dir, sliceSource{good, missing})
	if err != nil {
		t.Fatalf("unreadable file must not abort the scan: %v", err)
	}

	if rep.SkippedFileCount != 1 {
		t.Fatalf("skipped count %d, want 1", rep.SkippedFileCount)
	}
	if rep.ScannedFileCount != 1 {
		t.Fatalf("scanned count %d, want 1", rep.ScannedFileCount)
	}
	if len(skippedPaths) != 1 || skippedPaths[0] != missing {
		t.Fatalf("skip callback saw %v, want %s", skippedPaths, missing)
	}

	for _, d := range rep.Detections {
		for _, f := range d.Files {
			if f == missing {
				t.Fatalf("skipped file leaked into detection files: %v", d.Files)
			}
		}
	}
}

func TestScanUnsupportedLanguageBecomesSkip(t *testing.T) {
	dir := t.TempDir()
	doc := writeFile(t, dir, "README.md", "uses stripe\n")

	scanner := newScanner(t)
	rep, err := scanner.Scan(context.Background(), dir, sliceSource{doc})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if rep.SkippedFileCount != 1 || rep.ScannedFileCount != 0 {
		t.Fatalf("counts scanned=%d skipped=%d, want 0/1", rep.ScannedFileCount, rep.SkippedFileCount)
	}
	if len(rep.Detections) != 0 {
		t.Fatalf("unsupported file produced detections: %+v", rep.Detections)
	}
}

func TestScanBinaryFileBecomesSkip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.py")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0x02, 'i', 'm', 'p'}, 0o644); err != nil {
		t.Fatalf("write blob: %v", err)
	}

	var reason SkipReason
	scanner := newScanner(t)
	scanner.OnSkip = func(_ string, r SkipReason) { reason = r }

	rep, err := scanner.Scan(context.Background(), dir, sliceSource{path})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if rep.SkippedFileCount != 1 || reason != SkipEncoding {
		t.Fatalf("binary file skip: count=%d reason=%s", rep.SkippedFileCount, reason)
	}
}

func TestScanTimedOutFileBecomesSkip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "slow.py",
		"import stripe\n"+strings.Repeat("stripe.Charge.create(amount=100)\n", 5000))

	var reason SkipReason
	scanner := newScanner(t)
	scanner.Parallelism = 1
	scanner.PerFileTimeout = time.Nanosecond
	scanner.OnSkip = func(_ string, r SkipReason) { reason = r }

	rep, err := scanner.Scan(context.Background(), dir, sliceSource{path})
	if err != nil {
		t.Fatalf("timed-out file must not abort the scan: %v", err)
	}

	if rep.SkippedFileCount != 1 || rep.ScannedFileCount != 0 {
		t.Fatalf("counts scanned=%d skipped=%d, want 0/1", rep.ScannedFileCount, rep.SkippedFileCount)
	}
	if reason != SkipTimeout {
		t.Fatalf("skip reason %s, want %s", reason, SkipTimeout)
	}
	if len(rep.Detections) != 0 {
		t.Fatalf("timed-out file leaked detections: %+v", rep.Detections)
	}
}

func TestScanEmptyTree(t *testing.T) {
	scanner := newScanner(t)
	rep, err := scanner.Scan(context.Background(), t.TempDir(), sliceSource{})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(rep.Detections) != 0 {
		t.Fatalf("empty tree produced detections: %+v", rep.Detections)
	}
	if rep.ScannedFileCount != 0 || rep.SkippedFileCount != 0 {
		t.Fatalf("empty tree counts scanned=%d skipped=%d, want 0/0",
			rep.ScannedFileCount, rep.SkippedFileCount)
	}
}

func TestScanRepeatedRunsAreIdentical(t *testing.T) {
	dir := t.TempDir()
	files := sliceSource{
		writeFile(t, dir, "a.py", "import stripe\nimport boto3\n"),
		writeFile(t, dir, "b.py", `conn = psycopg2.connect(os.environ["DATABASE_URL"])`+"\n"),
	}

	scanner := newScanner(t)
	first, err := scanner.Scan(context.Background(), dir, files)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	second, err := scanner.Scan(context.Background(), dir, files)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated scans differ:\n%+v\n%+v", first, second)
	}
}

func TestScanLanguageAllowlist(t *testing.T) {
	dir := t.TempDir()
	py := writeFile(t, dir, "a.py", "import stripe\n")
	js := writeFile(t, dir, "b.js", "const Stripe = require('stripe');\n")

	scanner := newScanner(t)
	scanner.Languages = map[signature.Language]bool{signature.LanguagePython: true}

	rep, err := scanner.Scan(context.Background(), dir, sliceSource{py, js})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if rep.ScannedFileCount != 1 || rep.SkippedFileCount != 1 {
		t.Fatalf("allowlist counts scanned=%d skipped=%d, want 1/1",
			rep.ScannedFileCount, rep.SkippedFileCount)
	}
}

func TestScanCancelledContext(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.py", "import stripe\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := newScanner(t)
	if _, err := scanner.Scan(ctx, dir, sliceSource{path}); err == nil {
		t.Fatal("cancelled scan should surface an error")
	}
}

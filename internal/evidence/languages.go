package evidence

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/example/sdkscan/internal/signature"
)

// One extractor variant per language. Adding a language means adding a rule
// set here, never branching inside the scanner.

var pythonExtractor = &scanner{rules: rules{
	lang: signature.LanguagePython,
	imports: []*regexp.Regexp{
		regexp.MustCompile(`^\s*import\s+([\w.]+)`),
		regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import\b`),
	},
	envAccess: []*regexp.Regexp{
		regexp.MustCompile(`os\.environ(?:\.get)?\s*[\[(]\s*['"]([A-Za-z_][A-Za-z0-9_]*)['"]`),
		regexp.MustCompile(`os\.getenv\s*\(\s*['"]([A-Za-z_][A-Za-z0-9_]*)['"]`),
	},
	asyncDef:    regexp.MustCompile(`^\s*async\s+def\s`),
	syncDef:     regexp.MustCompile(`^\s*def\s`),
	awaitMarker: regexp.MustCompile(`\bawait\b`),
	lineComment: "#",
}}

var goExtractor = &scanner{rules: rules{
	lang: signature.LanguageGo,
	imports: []*regexp.Regexp{
		regexp.MustCompile(`^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`),
		regexp.MustCompile(`^\s*(?:[\w.]+\s+)?"([^"]+)"\s*$`),
	},
	envAccess: []*regexp.Regexp{
		regexp.MustCompile(`os\.(?:Getenv|LookupEnv)\s*\(\s*"([A-Za-z_][A-Za-z0-9_]*)"`),
	},
	lineComment: "//",
}}

var javascriptExtractor = &scanner{rules: rules{
	lang: signature.LanguageJavaScript,
	imports: []*regexp.Regexp{
		regexp.MustCompile(`\bfrom\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`\brequire\s*\(\s*['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`\bimport\s*\(\s*['"]([^'"]+)['"]`),
	},
	envAccess: []*regexp.Regexp{
		regexp.MustCompile(`process\.env\.([A-Za-z_][A-Za-z0-9_]*)`),
		regexp.MustCompile(`process\.env\[\s*['"]([A-Za-z_][A-Za-z0-9_]*)['"]`),
	},
	asyncDef:    regexp.MustCompile(`\basync\s`),
	syncDef:     regexp.MustCompile(`^\s*function\s`),
	awaitMarker: regexp.MustCompile(`\bawait\b`),
	lineComment: "//",
}}

var javaExtractor = &scanner{rules: rules{
	lang: signature.LanguageJava,
	imports: []*regexp.Regexp{
		regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+)`),
	},
	envAccess: []*regexp.Regexp{
		regexp.MustCompile(`System\.getenv\s*\(\s*"([A-Za-z_][A-Za-z0-9_]*)"`),
	},
	lineComment: "//",
}}

var rustExtractor = &scanner{rules: rules{
	lang: signature.LanguageRust,
	imports: []*regexp.Regexp{
		regexp.MustCompile(`^\s*use\s+([\w:]+)`),
		regexp.MustCompile(`^\s*extern\s+crate\s+(\w+)`),
	},
	envAccess: []*regexp.Regexp{
		regexp.MustCompile(`env::var\s*\(\s*"([A-Za-z_][A-Za-z0-9_]*)"`),
	},
	asyncDef:    regexp.MustCompile(`\basync\s+fn\b`),
	syncDef:     regexp.MustCompile(`^\s*(?:pub\s+)?fn\s`),
	awaitMarker: regexp.MustCompile(`\.await\b`),
	lineComment: "//",
}}

var rubyExtractor = &scanner{rules: rules{
	lang: signature.LanguageRuby,
	imports: []*regexp.Regexp{
		regexp.MustCompile(`^\s*require\s+['"]([^'"]+)['"]`),
		regexp.MustCompile(`^\s*gem\s+['"]([^'"]+)['"]`),
	},
	envAccess: []*regexp.Regexp{
		regexp.MustCompile(`ENV(?:\.fetch\s*\(|\[)\s*['"]([A-Za-z_][A-Za-z0-9_]*)['"]`),
	},
	lineComment: "#",
}}

// Dispatch routes files to extractors by extension, falling back to the
// shebang interpreter for extensionless scripts.
type Dispatch struct {
	byExtension   map[string]Extractor
	byInterpreter map[string]Extractor
}

// NewDispatch returns the default dispatch table covering every built-in
// extractor.
func NewDispatch() *Dispatch {
	d := &Dispatch{
		byExtension:   map[string]Extractor{},
		byInterpreter: map[string]Extractor{},
	}

	d.register(pythonExtractor, []string{".py", ".pyw"}, []string{"python", "python3"})
	d.register(goExtractor, []string{".go"}, nil)
	d.register(javascriptExtractor, []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx"}, []string{"node"})
	d.register(javaExtractor, []string{".java"}, nil)
	d.register(rustExtractor, []string{".rs"}, nil)
	d.register(rubyExtractor, []string{".rb"}, []string{"ruby"})

	return d
}

func (d *Dispatch) register(e Extractor, extensions, interpreters []string) {
	for _, ext := range extensions {
		d.byExtension[ext] = e
	}
	for _, interp := range interpreters {
		d.byInterpreter[interp] = e
	}
}

// Languages returns the distinct languages the dispatch can extract.
func (d *Dispatch) Languages() []signature.Language {
	seen := map[signature.Language]struct{}{}
	var out []signature.Language
	for _, e := range d.byExtension {
		if _, ok := seen[e.Language()]; ok {
			continue
		}
		seen[e.Language()] = struct{}{}
		out = append(out, e.Language())
	}
	return out
}

// ForFile selects the extractor for path, peeking at src for a shebang when
// the extension is unknown. A nil result means the file is unsupported and
// should be counted as skipped.
func (d *Dispatch) ForFile(path string, src []byte) Extractor {
	if e, ok := d.byExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return e
	}
	if interp := shebangInterpreter(src); interp != "" {
		if e, ok := d.byInterpreter[interp]; ok {
			return e
		}
	}
	return nil
}

// ForLanguage returns the extractor registered for lang, or nil.
func (d *Dispatch) ForLanguage(lang signature.Language) Extractor {
	for _, e := range d.byExtension {
		if e.Language() == lang {
			return e
		}
	}
	return nil
}

func shebangInterpreter(src []byte) string {
	if !bytes.HasPrefix(src, []byte("#!")) {
		return ""
	}
	end := bytes.IndexByte(src, '\n')
	if end < 0 {
		end = len(src)
	}
	fields := strings.Fields(string(src[2:end]))
	if len(fields) == 0 {
		return ""
	}
	interp := filepath.Base(fields[0])
	if interp == "env" && len(fields) > 1 {
		interp = filepath.Base(fields[1])
	}
	return interp
}

package signature

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Language identifies the source language a signature applies to.
// LanguageAny matches evidence from every extractor.
type Language string

const (
	LanguageAny        Language = "any"
	LanguagePython     Language = "python"
	LanguageGo         Language = "go"
	LanguageJavaScript Language = "javascript"
	LanguageJava       Language = "java"
	LanguageRust       Language = "rust"
	LanguageRuby       Language = "ruby"
)

// Mechanism names the syntactic pattern through which code reaches a provider.
type Mechanism string

const (
	MechanismSDKImport          Mechanism = "sdk-import"
	MechanismClientConstruction Mechanism = "client-construction"
	MechanismRawHTTPEndpoint    Mechanism = "raw-http-endpoint"
	MechanismAsyncHTTPEndpoint  Mechanism = "async-http-endpoint"
	MechanismEnvVarCredential   Mechanism = "env-var-credential"
)

// Mechanisms lists every known mechanism, strongest evidence first.
var Mechanisms = []Mechanism{
	MechanismSDKImport,
	MechanismClientConstruction,
	MechanismRawHTTPEndpoint,
	MechanismAsyncHTTPEndpoint,
	MechanismEnvVarCredential,
}

// Valid reports whether m names a known mechanism.
func (m Mechanism) Valid() bool {
	switch m {
	case MechanismSDKImport, MechanismClientConstruction, MechanismRawHTTPEndpoint,
		MechanismAsyncHTTPEndpoint, MechanismEnvVarCredential:
		return true
	}
	return false
}

// PatternKind selects how a Pattern value is matched against token text.
type PatternKind string

const (
	PatternPrefix    PatternKind = "prefix"
	PatternSubstring PatternKind = "substring"
	PatternRegex     PatternKind = "regex"
)

// Pattern is one lexical signature. Identifier-bearing mechanisms match
// case-sensitively; endpoint host fragments match case-insensitively.
type Pattern struct {
	Kind  PatternKind `yaml:"kind"`
	Value string      `yaml:"value"`

	re *regexp.Regexp
}

// Entry associates one pattern with a provider, mechanism, and language.
type Entry struct {
	Provider  string    `yaml:"provider"`
	Mechanism Mechanism `yaml:"mechanism"`
	Language  Language  `yaml:"language"`
	Pattern   Pattern   `yaml:"pattern"`
	Weight    float64   `yaml:"weight"`
}

// Span marks the matched region of the token text.
type Span struct {
	Start int
	End   int
}

// Match pairs a registry entry with the span of token text it matched.
type Match struct {
	Entry *Entry
	Span  Span
}

// RegistryError reports a malformed registry. It is the only fatal error
// class in the engine: a load failure rejects the whole registry before any
// scanning starts.
type RegistryError struct {
	Detail string
}

func (e *RegistryError) Error() string {
	return "signature registry: " + e.Detail
}

func registryErrorf(format string, args ...interface{}) error {
	return &RegistryError{Detail: fmt.Sprintf(format, args...)}
}

// Registry is the immutable signature catalog. It is built once, validated,
// and then shared read-only across scan workers.
type Registry struct {
	entries []Entry
	// by (language, mechanism); LanguageAny entries are merged in at lookup.
	index map[Language]map[Mechanism][]*Entry
}

// New validates the entries and builds a lookup index. Any invalid entry
// rejects the whole registry.
func New(entries []Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, len(entries)),
		index:   map[Language]map[Mechanism][]*Entry{},
	}
	copy(r.entries, entries)

	seen := map[string]int{}
	for i := range r.entries {
		e := &r.entries[i]
		if e.Provider == "" {
			return nil, registryErrorf("entry %d: provider is required", i)
		}
		if !e.Mechanism.Valid() {
			return nil, registryErrorf("entry %d (%s): unknown mechanism %q", i, e.Provider, e.Mechanism)
		}
		if e.Language == "" {
			e.Language = LanguageAny
		}
		if !(e.Weight > 0 && e.Weight <= 1) {
			return nil, registryErrorf("entry %d (%s): weight %v outside (0,1]", i, e.Provider, e.Weight)
		}
		if e.Pattern.Value == "" {
			return nil, registryErrorf("entry %d (%s): empty pattern", i, e.Provider)
		}
		if err := e.Pattern.compile(e.Mechanism); err != nil {
			return nil, registryErrorf("entry %d (%s): %v", i, e.Provider, err)
		}

		key := strings.Join([]string{e.Provider, string(e.Mechanism), string(e.Language), string(e.Pattern.Kind), e.Pattern.Value}, "\x00")
		if prev, dup := seen[key]; dup {
			return nil, registryErrorf("entries %d and %d: duplicate pattern %q for provider %s, mechanism %s, language %s",
				prev, i, e.Pattern.Value, e.Provider, e.Mechanism, e.Language)
		}
		seen[key] = i

		byMech, ok := r.index[e.Language]
		if !ok {
			byMech = map[Mechanism][]*Entry{}
			r.index[e.Language] = byMech
		}
		byMech[e.Mechanism] = append(byMech[e.Mechanism], e)
	}

	return r, nil
}

// Len returns the number of entries in the registry.
func (r *Registry) Len() int { return len(r.entries) }

// Entries returns a copy of the validated entries.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Providers returns the distinct provider names covered by the registry,
// sorted lexically.
func (r *Registry) Providers() []string {
	set := map[string]struct{}{}
	for i := range r.entries {
		set[r.entries[i].Provider] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Lookup returns every entry whose pattern matches text for the given
// language and mechanism. Entries registered for LanguageAny are always
// consulted. A single text may match entries of several providers; the
// Matcher decides which to keep.
func (r *Registry) Lookup(lang Language, mech Mechanism, text string) []Match {
	var out []Match
	for _, candidates := range [][]*Entry{r.index[lang][mech], r.index[LanguageAny][mech]} {
		for _, e := range candidates {
			if span, ok := e.Pattern.match(text, e.Mechanism); ok {
				out = append(out, Match{Entry: e, Span: span})
			}
		}
	}
	return out
}

func (p *Pattern) compile(mech Mechanism) error {
	switch p.Kind {
	case PatternPrefix, PatternSubstring:
		if caseFold(mech) {
			p.Value = strings.ToLower(p.Value)
		}
		return nil
	case PatternRegex:
		value := p.Value
		if caseFold(mech) {
			value = "(?i)" + value
		}
		re, err := regexp.Compile(value)
		if err != nil {
			return fmt.Errorf("invalid regex pattern %q: %w", p.Value, err)
		}
		p.re = re
		return nil
	case "":
		return fmt.Errorf("pattern kind is required")
	default:
		return fmt.Errorf("unknown pattern kind %q", p.Kind)
	}
}

// Host fragments are case-insensitive; identifiers, imports, and env var
// names are case-sensitive.
func caseFold(mech Mechanism) bool {
	return mech == MechanismRawHTTPEndpoint || mech == MechanismAsyncHTTPEndpoint
}

func (p *Pattern) match(text string, mech Mechanism) (Span, bool) {
	subject := text
	if caseFold(mech) {
		subject = strings.ToLower(text)
	}

	switch p.Kind {
	case PatternPrefix:
		if strings.HasPrefix(subject, p.Value) {
			return Span{Start: 0, End: len(p.Value)}, true
		}
	case PatternSubstring:
		if idx := strings.Index(subject, p.Value); idx >= 0 {
			return Span{Start: idx, End: idx + len(p.Value)}, true
		}
	case PatternRegex:
		if loc := p.re.FindStringIndex(text); loc != nil {
			return Span{Start: loc[0], End: loc[1]}, true
		}
	}
	return Span{}, false
}

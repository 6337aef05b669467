package evidence

import (
	"bufio"
	"bytes"
	"regexp"
	"strings"

	"github.com/example/sdkscan/internal/signature"
)

// rules parameterizes the shared line scanner for one language.
type rules struct {
	lang signature.Language

	// imports capture the imported module path in group 1.
	imports []*regexp.Regexp
	// envAccess capture the environment variable name in group 1.
	envAccess []*regexp.Regexp
	// asyncDef / syncDef toggle the enclosing-function async state.
	asyncDef *regexp.Regexp
	syncDef  *regexp.Regexp
	// awaitMarker upgrades endpoint literals on the same line.
	awaitMarker *regexp.Regexp

	lineComment string
}

// scanner is the shared lexical extractor. One instance per language,
// stateless across files.
type scanner struct {
	rules rules
}

func (s *scanner) Language() signature.Language { return s.rules.lang }

// callShape matches a line containing something invoked like a function or
// constructor. Over-emitting here is fine: the registry decides what counts.
var callShape = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.:]*\s*\(`)

// stringLiteral captures single- or double-quoted literals without escapes
// spanning the closing quote.
var stringLiteral = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'`)

// urlScheme splits scheme://rest literals.
var urlScheme = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+.-]*)://`)

func (s *scanner) Extract(path string, src []byte) []Token {
	var tokens []Token
	inAsync := false

	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := stripLineComment(sc.Text(), s.rules.lineComment)
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if s.rules.asyncDef != nil && s.rules.asyncDef.MatchString(line) {
			inAsync = true
		} else if s.rules.syncDef != nil && s.rules.syncDef.MatchString(line) {
			inAsync = false
		}

		emit := func(mech signature.Mechanism, text string) {
			tokens = append(tokens, Token{
				File:      path,
				Line:      lineNo,
				Mechanism: mech,
				Text:      text,
				Language:  s.rules.lang,
			})
		}

		imported := false
		for _, re := range s.rules.imports {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			// A bare quoted URL inside a literal block is not an import.
			if strings.Contains(m[1], "://") {
				continue
			}
			emit(signature.MechanismSDKImport, m[1])
			imported = true
			break
		}
		if imported {
			continue
		}

		for _, re := range s.rules.envAccess {
			for _, m := range re.FindAllStringSubmatch(line, -1) {
				emit(signature.MechanismEnvVarCredential, m[1])
			}
		}

		lineAwaits := s.rules.awaitMarker != nil && s.rules.awaitMarker.MatchString(line)
		for _, m := range stringLiteral.FindAllStringSubmatch(line, -1) {
			lit := m[1]
			if lit == "" {
				lit = m[2]
			}
			scheme := urlScheme.FindStringSubmatch(lit)
			switch {
			case scheme == nil:
				continue
			case strings.EqualFold(scheme[1], "http") || strings.EqualFold(scheme[1], "https"):
				mech := signature.MechanismRawHTTPEndpoint
				if inAsync || lineAwaits {
					mech = signature.MechanismAsyncHTTPEndpoint
				}
				emit(mech, lit)
			default:
				// Non-HTTP connection URIs (redis://, postgresql://, ...)
				// construct a client connection.
				emit(signature.MechanismClientConstruction, lit)
			}
		}
		// JDBC URLs carry no // after the scheme.
		if idx := strings.Index(line, "jdbc:"); idx >= 0 {
			emit(signature.MechanismClientConstruction, jdbcLiteral(line[idx:]))
		}

		if callShape.MatchString(line) {
			emit(signature.MechanismClientConstruction, trimmed)
		}
	}

	// A scan error here means a pathological line; tokens gathered so far
	// are still valid evidence.
	return tokens
}

// stripLineComment removes a trailing line comment, ignoring comment
// markers that appear inside string literals.
func stripLineComment(line, marker string) string {
	if marker == "" {
		return line
	}

	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'' || c == '`':
			quote = c
		case strings.HasPrefix(line[i:], marker):
			return line[:i]
		}
	}
	return line
}

func jdbcLiteral(s string) string {
	end := len(s)
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\'' || s[i] == ' ' || s[i] == ')' || s[i] == ',' {
			end = i
			break
		}
	}
	return s[:end]
}

// Package evidence turns raw source text into candidate evidence tokens.
//
// Extraction is lexical and line-oriented: no parse tree is built, and every
// token carries the 1-based line it came from. This mirrors the registry,
// whose patterns are themselves lexical. Endpoint URLs assembled through
// string concatenation or formatting are not observable this way and are a
// known recall limitation.
package evidence

import (
	"github.com/example/sdkscan/internal/signature"
)

// Token is one candidate observation from a single file. Tokens are
// ephemeral: produced per file, consumed by the matcher, then discarded.
type Token struct {
	File      string
	Line      int
	Mechanism signature.Mechanism
	Text      string
	Language  signature.Language
}

// Extractor converts one file's text into tokens for a single language.
// Implementations are stateless and safe for concurrent use.
type Extractor interface {
	Language() signature.Language
	Extract(path string, src []byte) []Token
}

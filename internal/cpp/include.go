package cpp

import "io"

// IncludeSearcher resolves a #include operand to source text, the way
// andrewchambers-cc's preprocessor separates "where do headers live"
// from "how are they substituted". Angled lookups search -I dirs only;
// quoted lookups additionally search the including file's own
// directory first.
type IncludeSearcher interface {
	IncludeAngled(fromFile, path string) (name string, r io.Reader, err error)
	IncludeQuote(fromFile, path string) (name string, r io.Reader, err error)
}

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ppstep/ppstep/internal/cpp"
)

// fsSearcher resolves #include operands against the real filesystem:
// quoted includes search the including file's own directory first,
// then every -I directory in order; angled includes search only the
// -I directories. mainDir is the directory of the file named on the
// command line, used when an include appears directly in the main
// file (fromFile == mainFile).
type fsSearcher struct {
	includeDirs []string
	mainFile    string
	mainDir     string
}

func newFSSearcher(includeDirs []string, mainFile string) *fsSearcher {
	return &fsSearcher{
		includeDirs: includeDirs,
		mainFile:    mainFile,
		mainDir:     filepath.Dir(mainFile),
	}
}

var _ cpp.IncludeSearcher = (*fsSearcher)(nil)

func (s *fsSearcher) IncludeAngled(_, path string) (string, io.Reader, error) {
	for _, dir := range s.includeDirs {
		full := filepath.Join(dir, path)
		if f, err := os.Open(full); err == nil {
			return full, f, nil
		}
	}
	return "", nil, fmt.Errorf("include file not found: <%s>", path)
}

func (s *fsSearcher) IncludeQuote(fromFile, path string) (string, io.Reader, error) {
	dir := s.mainDir
	if fromFile != s.mainFile {
		dir = filepath.Dir(fromFile)
	}
	full := filepath.Join(dir, path)
	if f, err := os.Open(full); err == nil {
		return full, f, nil
	}
	return s.IncludeAngled(fromFile, path)
}

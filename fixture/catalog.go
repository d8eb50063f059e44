// Package fixture enumerates the golden fixture corpora.
package fixture

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lattice-substrate/json-conform/conferr"
)

// Corpus identifies which corpus a fixture belongs to.
type Corpus string

const (
	// Success fixtures are valid JSON expected to round-trip through the tool.
	Success Corpus = "success"
	// Crash fixtures are malformed or adversarial JSON used only to confirm
	// the tool handles them without aborting.
	Crash Corpus = "crash"
)

// Directory names of the two corpora below the corpus root.
const (
	SuccessDir = "data"
	CrashDir   = "crash-data"
)

// Dir returns the directory name of the corpus.
func (c Corpus) Dir() string {
	if c == Crash {
		return CrashDir
	}
	return SuccessDir
}

// Fixture is one immutable golden file.
type Fixture struct {
	Corpus Corpus
	Path   string // absolute
	Rel    string // slash-separated, relative to the corpus directory
}

// Name is the stable identity of the fixture within its corpus.
func (f Fixture) Name() string {
	return f.Rel
}

// Catalog is the sorted set of fixtures of one corpus.
type Catalog struct {
	Corpus   Corpus
	Dir      string
	Fixtures []Fixture
}

// Len returns the number of fixtures.
func (c *Catalog) Len() int {
	return len(c.Fixtures)
}

// Load scans dir recursively and returns its regular files sorted by
// relative path. A missing directory yields an empty catalog. Dot-files and
// dot-directories are skipped. When filter is non-empty only fixtures whose
// relative path (or base name) matches the glob are kept.
func Load(corpus Corpus, dir, filter string) (*Catalog, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, conferr.Wrap(conferr.FixtureUnreadable, dir, "resolve corpus directory", err)
	}
	cat := &Catalog{Corpus: corpus, Dir: abs}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return cat, nil
		}
		return nil, conferr.Wrap(conferr.FixtureUnreadable, abs, "stat corpus directory", err)
	}
	if !info.IsDir() {
		return nil, conferr.New(conferr.FixtureUnreadable, abs, "corpus path is not a directory")
	}

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return conferr.Wrap(conferr.FixtureUnreadable, path, "scan corpus", err)
		}
		if path != abs && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return conferr.Wrap(conferr.FixtureUnreadable, path, "relativize fixture path", err)
		}
		rel = filepath.ToSlash(rel)
		if filter != "" {
			ok, err := matches(filter, rel)
			if err != nil {
				return conferr.Wrap(conferr.ConfigInvalid, filter, "invalid filter pattern", err)
			}
			if !ok {
				return nil
			}
		}
		cat.Fixtures = append(cat.Fixtures, Fixture{Corpus: corpus, Path: path, Rel: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(cat.Fixtures, func(i, j int) bool {
		return cat.Fixtures[i].Rel < cat.Fixtures[j].Rel
	})
	return cat, nil
}

func matches(pattern, rel string) (bool, error) {
	ok, err := filepath.Match(pattern, rel)
	if err != nil || ok {
		return ok, err
	}
	return filepath.Match(pattern, filepath.Base(rel))
}

// Corpora holds both catalogs of one corpus root.
type Corpora struct {
	Root    string
	Success *Catalog
	Crash   *Catalog
}

// LoadAll loads both corpora below root.
func LoadAll(root, filter string) (*Corpora, error) {
	success, err := Load(Success, filepath.Join(root, SuccessDir), filter)
	if err != nil {
		return nil, fmt.Errorf("load success corpus: %w", err)
	}
	crash, err := Load(Crash, filepath.Join(root, CrashDir), filter)
	if err != nil {
		return nil, fmt.Errorf("load crash corpus: %w", err)
	}
	return &Corpora{Root: root, Success: success, Crash: crash}, nil
}

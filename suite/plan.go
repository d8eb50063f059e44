package suite

import (
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/lattice-substrate/json-conform/fixture"
	"github.com/lattice-substrate/json-conform/invoke"
)

// DeterminismSuffix ends the ID of a determinism case.
const DeterminismSuffix = "determinism"

// Case is one planned unit of work.
type Case struct {
	ID      string
	Fixture fixture.Fixture
	Mode    invoke.Mode
	// Determinism cases run Mode twice and compare the canonical outputs.
	Determinism bool
}

// ArtifactDir is the per-case directory name: a readable slug of the ID
// plus a short hash of the full ID, unique even when slugs collide.
func (c Case) ArtifactDir() string {
	sum := blake3.Sum256([]byte(c.ID))
	slug := slugify(c.ID)
	const maxSlug = 80
	if len(slug) > maxSlug {
		slug = slug[len(slug)-maxSlug:]
	}
	return slug + "-" + hex.EncodeToString(sum[:6])
}

func slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	dash := false
	for _, r := range s {
		ok := r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_'
		if ok {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-.")
}

// CaseID returns <corpus>/<relative fixture path>/<mode>.
func CaseID(f fixture.Fixture, mode invoke.Mode) string {
	return string(f.Corpus) + "/" + f.Rel + "/" + string(mode)
}

// Plan materializes the case table: every success fixture crossed with
// every enabled mode, an optional determinism case per success fixture,
// and one crash case per crash fixture. Cases are sorted by ID.
func Plan(c *fixture.Corpora, modes []invoke.Mode, determinism bool) []Case {
	var cases []Case
	if c.Success != nil {
		for _, f := range c.Success.Fixtures {
			for _, m := range modes {
				cases = append(cases, Case{ID: CaseID(f, m), Fixture: f, Mode: m})
			}
			if determinism {
				cases = append(cases, Case{
					ID:          string(f.Corpus) + "/" + f.Rel + "/" + DeterminismSuffix,
					Fixture:     f,
					Mode:        invoke.Default,
					Determinism: true,
				})
			}
		}
	}
	if c.Crash != nil {
		for _, f := range c.Crash.Fixtures {
			cases = append(cases, Case{ID: CaseID(f, invoke.Crash), Fixture: f, Mode: invoke.Crash})
		}
	}
	sort.SliceStable(cases, func(i, j int) bool { return cases[i].ID < cases[j].ID })
	return cases
}

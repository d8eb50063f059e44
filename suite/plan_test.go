package suite_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lattice-substrate/json-conform/fixture"
	"github.com/lattice-substrate/json-conform/invoke"
	"github.com/lattice-substrate/json-conform/suite"
)

func corpora(success, crash []string) *fixture.Corpora {
	c := &fixture.Corpora{
		Success: &fixture.Catalog{Corpus: fixture.Success},
		Crash:   &fixture.Catalog{Corpus: fixture.Crash},
	}
	for _, rel := range success {
		c.Success.Fixtures = append(c.Success.Fixtures, fixture.Fixture{Corpus: fixture.Success, Rel: rel, Path: "/data/" + rel})
	}
	for _, rel := range crash {
		c.Crash.Fixtures = append(c.Crash.Fixtures, fixture.Fixture{Corpus: fixture.Crash, Rel: rel, Path: "/crash-data/" + rel})
	}
	return c
}

func ids(cases []suite.Case) []string {
	out := make([]string, len(cases))
	for i, c := range cases {
		out[i] = c.ID
	}
	return out
}

func TestPlanCrossProduct(t *testing.T) {
	c := corpora([]string{"b.json", "a.json"}, []string{"t.json"})
	cases := suite.Plan(c, []invoke.Mode{invoke.Default, invoke.InSitu}, false)
	assert.Equal(t, []string{
		"crash/t.json/crash",
		"success/a.json/default",
		"success/a.json/insitu",
		"success/b.json/default",
		"success/b.json/insitu",
	}, ids(cases))
}

func TestPlanDeterminismCases(t *testing.T) {
	c := corpora([]string{"a.json"}, nil)
	cases := suite.Plan(c, []invoke.Mode{invoke.Dynamic}, true)
	require.Len(t, cases, 2)
	assert.Equal(t, "success/a.json/determinism", cases[0].ID)
	assert.True(t, cases[0].Determinism)
	assert.Equal(t, invoke.Default, cases[0].Mode)
	assert.Equal(t, "success/a.json/dynamic", cases[1].ID)
}

func TestPlanEmptySuccessCorpus(t *testing.T) {
	cases := suite.Plan(corpora(nil, nil), invoke.SuccessModes, true)
	assert.Empty(t, cases)
}

func TestPlanIsStable(t *testing.T) {
	c := corpora([]string{"x/1.json", "x/2.json"}, []string{"a.json", "b.json"})
	first := ids(suite.Plan(c, invoke.SuccessModes, true))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ids(suite.Plan(c, invoke.SuccessModes, true)))
	}
}

func TestArtifactDirUnique(t *testing.T) {
	// Both IDs slugify to the same text.
	a := suite.Case{ID: "success/a b.json/default"}
	b := suite.Case{ID: "success/a/b.json/default"}
	assert.NotEqual(t, a.ArtifactDir(), b.ArtifactDir())
	assert.Equal(t, a.ArtifactDir(), a.ArtifactDir())
	assert.NotContains(t, a.ArtifactDir(), "/")
	assert.True(t, strings.HasPrefix(a.ArtifactDir(), "success-a-b.json-default-"), a.ArtifactDir())

	long := suite.Case{ID: "success/" + strings.Repeat("deep/", 50) + "x.json/default"}
	assert.LessOrEqual(t, len(long.ArtifactDir()), 80+1+12)
}

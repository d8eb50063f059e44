package jsontree_test

import (
	"bytes"
	"testing"

	"github.com/lattice-substrate/json-conform/jsontree"
)

// FuzzParseCanonicalRoundTrip: parse → serialize → parse → serialize
// idempotence, and every tree compares equal to its own canonical form.
func FuzzParseCanonicalRoundTrip(f *testing.F) {
	seeds := [][]byte{
		[]byte(`null`),
		[]byte(`true`),
		[]byte(`{"a":1,"b":[1,2,3]}`),
		[]byte(`{"":1,"𐀀":2}`),
		[]byte(`"a\/b"`),
		[]byte(`1e21`),
		[]byte(`{"a":`),
	}
	for _, seed := range seeds {
		f.Add(seed)
	}

	cmp := jsontree.NewComparator()
	f.Fuzz(func(t *testing.T, in []byte) {
		if len(in) > 1<<20 {
			return
		}

		v, err := jsontree.Parse(in)
		if err != nil {
			return
		}

		out1, err := jsontree.Serialize(v)
		if err != nil {
			t.Fatalf("serialize parsed value: %v", err)
		}

		v2, err := jsontree.Parse(out1)
		if err != nil {
			t.Fatalf("reparse canonical output: %v", err)
		}
		out2, err := jsontree.Serialize(v2)
		if err != nil {
			t.Fatalf("reserialize canonical output: %v", err)
		}
		if !bytes.Equal(out1, out2) {
			t.Fatalf("non-deterministic canonical bytes: %q vs %q", out1, out2)
		}
		if o := cmp.Compare(v, v2); !o.Equal {
			t.Fatalf("tree differs from its canonical form: %s", o)
		}
	})
}

package coverage

import "testing"

func snapshotOf(unit string, lines ...int) Snapshot {
	s := NewSnapshot()
	for _, line := range lines {
		s.Add(Location{Unit: unit, Line: line})
	}
	return s
}

func TestFingerprintIgnoresInsertionOrder(t *testing.T) {
	a := snapshotOf("crashme", 8, 9, 13, 14)
	b := snapshotOf("crashme", 14, 13, 9, 8)
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("equal sets produced different fingerprints")
	}
}

func TestFingerprintSeparatesDistinctSets(t *testing.T) {
	a := snapshotOf("crashme", 8, 9)
	b := snapshotOf("crashme", 8, 9, 13)
	c := snapshotOf("other", 8, 9)
	if Fingerprint(a) == Fingerprint(b) {
		t.Fatal("superset collided with its subset")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Fatal("same lines in a different unit collided")
	}
}

func TestMergeIsUnion(t *testing.T) {
	a := snapshotOf("crashme", 8, 9)
	b := snapshotOf("crashme", 9, 13)
	a.Merge(b)
	if a.Len() != 3 {
		t.Fatalf("merged size = %d, want 3", a.Len())
	}
	for _, line := range []int{8, 9, 13} {
		if _, ok := a[Location{Unit: "crashme", Line: line}]; !ok {
			t.Fatalf("merged set missing line %d", line)
		}
	}
}

func TestSetKeyerIsCanonical(t *testing.T) {
	a := snapshotOf("crashme", 13, 8, 9)
	b := snapshotOf("crashme", 9, 13, 8)
	keyer := SetKeyer{}
	key := keyer.Key(a)
	if key != keyer.Key(b) {
		t.Fatal("equal sets produced different set keys")
	}
	if want := "crashme:8,crashme:9,crashme:13"; key != want {
		t.Fatalf("key = %q, want %q", key, want)
	}
}

func TestHashKeyerIsFixedWidth(t *testing.T) {
	key := HashKeyer{}.Key(snapshotOf("crashme", 8, 9))
	if len(key) != 16 {
		t.Fatalf("key %q has length %d, want 16", key, len(key))
	}
}

func TestKeyerFor(t *testing.T) {
	if _, ok := KeyerFor("set").(SetKeyer); !ok {
		t.Fatal("mode set did not select SetKeyer")
	}
	if _, ok := KeyerFor("hash").(HashKeyer); !ok {
		t.Fatal("mode hash did not select HashKeyer")
	}
	if _, ok := KeyerFor("").(HashKeyer); !ok {
		t.Fatal("empty mode did not default to HashKeyer")
	}
}

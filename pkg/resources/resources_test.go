package resources

import "testing"

func TestAddSub(t *testing.T) {
	a := New("cpu", 4.0, "mem", 1024.0)
	b := New("cpu", 1.0, "mem", 256.0)

	sum := a.Add(b)
	if sum["cpu"] != 5 || sum["mem"] != 1280 {
		t.Fatalf("unexpected sum: %v", sum)
	}

	diff := sum.Sub(b)
	if !diff.Equal(a) {
		t.Fatalf("expected %v, got %v", a, diff)
	}
}

func TestSubPanicsOnNegative(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic subtracting more than available")
		}
	}()
	a := New("cpu", 1.0)
	b := New("cpu", 2.0)
	a.Sub(b)
}

func TestContains(t *testing.T) {
	total := New("cpu", 4.0, "mem", 1024.0)
	if !total.Contains(New("cpu", 2.0, "mem", 512.0)) {
		t.Fatal("expected total to contain the smaller vector")
	}
	if total.Contains(New("cpu", 8.0)) {
		t.Fatal("did not expect total to contain a larger vector")
	}
	// A kind unknown to the requester is simply ignored.
	if !total.Contains(New("gpu", 0.0)) {
		t.Fatal("zero-quantity kinds should never fail Contains")
	}
}

func TestEqualIgnoresZeroEntries(t *testing.T) {
	a := Resources{"cpu": 1, "gpu": 0}
	b := Resources{"cpu": 1}
	if !a.Equal(b) {
		t.Fatalf("expected %v to equal %v", a, b)
	}
}

func TestIsZero(t *testing.T) {
	if !(Resources{}).IsZero() {
		t.Fatal("empty vector should be zero")
	}
	if (New("cpu", 0.1)).IsZero() {
		t.Fatal("nonzero vector should not be zero")
	}
}

func TestCloneIndependence(t *testing.T) {
	a := New("cpu", 1.0)
	b := a.Clone()
	b["cpu"] = 99
	if a["cpu"] != 1 {
		t.Fatal("mutating the clone should not affect the original")
	}
}

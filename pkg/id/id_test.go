package id

import "testing"

func TestNextIsMonotonicPerKind(t *testing.T) {
	m := NewMint(3)
	a := m.Next(Framework)
	b := m.Next(Framework)
	if a == b {
		t.Fatalf("expected distinct ids, got %q twice", a)
	}

	c := m.Next(Slave)
	if c == a {
		t.Fatalf("expected independent counters per kind")
	}
}

func TestOfferEpochRoundTrips(t *testing.T) {
	m := NewMint(7)
	offerID := m.Next(Offer)
	epoch, err := OfferEpoch(offerID)
	if err != nil {
		t.Fatal(err)
	}
	if epoch != 7 {
		t.Fatalf("expected epoch 7, got %d", epoch)
	}
}

func TestOfferEpochRejectsMalformed(t *testing.T) {
	if _, err := OfferEpoch("garbage"); err == nil {
		t.Fatal("expected error for malformed id")
	}
}

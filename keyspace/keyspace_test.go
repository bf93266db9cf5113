package keyspace

import "testing"

func TestOrdZeroPadding(t *testing.T) {
	cases := map[uint64]string{
		0:        "00000000",
		1:        "00000001",
		99999999: "99999999",
	}
	for in, want := range cases {
		if got := Ord(in); got != want {
			t.Errorf("Ord(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeZeroPadding(t *testing.T) {
	if got := Time(946702800); got != "000946702800" {
		t.Errorf("Time(946702800) = %q, want %q", got, "000946702800")
	}
}

func TestLexicalOrderMatchesNumericOrder(t *testing.T) {
	a, b := Ord(5), Ord(123)
	if !(a < b) {
		t.Errorf("Ord(5)=%q should sort before Ord(123)=%q", a, b)
	}
}

func TestAddressTxoRoundTripsUnderPrefix(t *testing.T) {
	addr := "1BoatSLRHtKNngkdXEeobR76b53LETtpyT"
	key := AddressTxo(addr, 42)
	start, end := PrefixRange(AddressTxoPrefix(addr))
	if !(start <= key && key < end) {
		t.Errorf("AddressTxo key %q not within PrefixRange bounds [%q, %q)", key, start, end)
	}
}

func TestPrefixRangeExcludesOtherAddresses(t *testing.T) {
	start, end := PrefixRange(AddressTxoPrefix("addrA"))
	other := AddressTxo("addrB", 1)
	if start <= other && other < end {
		t.Errorf("addrB's key %q should not fall within addrA's prefix range", other)
	}
}

func TestOutpointSpentKeyIsStableForSameOutpoint(t *testing.T) {
	k1 := OutpointSpent("deadbeef", 0)
	k2 := OutpointSpent("deadbeef", 0)
	if k1 != k2 {
		t.Errorf("OutpointSpent should be deterministic, got %q and %q", k1, k2)
	}
}

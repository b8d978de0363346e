package reference

import "testing"

func TestCitationsFallback(t *testing.T) {
	tables := Default()

	cites := tables.CitationsFor("B1")
	if len(cites) == 0 {
		t.Fatal("B1 has no citations")
	}

	fallback := tables.CitationsFor("NO-SUCH-RULE")
	if len(fallback) != 1 || fallback[0] != tables.GenericCitation {
		t.Errorf("missing rule id did not fall back to generic citation: %v", fallback)
	}
}

func TestCitationsForReturnsCopy(t *testing.T) {
	tables := Default()

	cites := tables.CitationsFor("B1")
	cites[0] = "mutated"

	if tables.CitationsFor("B1")[0] == "mutated" {
		t.Error("CitationsFor exposed internal slice")
	}
}

func TestLimitationsLookup(t *testing.T) {
	tables := Default()

	tests := []struct {
		code  string
		years int
		known bool
	}{
		{"CA", 4, true},
		{"ca", 4, true},
		{" tx ", 4, true},
		{"NY", 6, true},
		{"ZZ", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		years, known := tables.LimitationsYears(tt.code)
		if years != tt.years || known != tt.known {
			t.Errorf("LimitationsYears(%q) = (%d, %v), want (%d, %v)", tt.code, years, known, tt.years, tt.known)
		}
	}
}

func TestCollectorPrefixMatch(t *testing.T) {
	tables := Default()

	profile, ok := tables.CollectorFor("midlandcreditmanagementinc")
	if !ok {
		t.Fatal("known collector not matched")
	}
	if profile.Name != "Midland Credit Management" {
		t.Errorf("matched wrong profile: %+v", profile)
	}

	if _, ok := tables.CollectorFor("friendlylocalbank"); ok {
		t.Error("unknown furnisher matched a collector profile")
	}
}

package shipping

import "testing"

func TestResolveIncoterm_RestrictedCountryForcesDDU(t *testing.T) {
	if got := ResolveIncoterm("BR", IncotermDDP, nil); got != IncotermDDU {
		t.Fatalf("expected DDU for restricted destination, got %s", got)
	}
	if got := ResolveIncoterm("br", IncotermDDU, nil); got != IncotermDDU {
		t.Fatalf("expected DDU regardless of configured default, got %s", got)
	}
}

func TestResolveIncoterm_UnrestrictedUsesConfiguredDefault(t *testing.T) {
	if got := ResolveIncoterm("DE", IncotermDDP, nil); got != IncotermDDP {
		t.Fatalf("expected configured DDP for unrestricted destination, got %s", got)
	}
	if got := ResolveIncoterm("DE", IncotermDDU, nil); got != IncotermDDU {
		t.Fatalf("expected configured DDU for unrestricted destination, got %s", got)
	}
}

func TestResolveIncoterm_CustomRestrictedListReplacesDefault(t *testing.T) {
	restricted := []string{"FR"}
	if got := ResolveIncoterm("FR", IncotermDDP, restricted); got != IncotermDDU {
		t.Fatalf("expected DDU for custom restricted country, got %s", got)
	}
	// BR is only in the built-in set, which the custom list replaces.
	if got := ResolveIncoterm("BR", IncotermDDP, restricted); got != IncotermDDP {
		t.Fatalf("expected DDP when custom list omits BR, got %s", got)
	}
}

func TestResolveIncoterm_EmptyDefaultIsDDU(t *testing.T) {
	if got := ResolveIncoterm("DE", "", nil); got != IncotermDDU {
		t.Fatalf("expected empty default to resolve DDU, got %s", got)
	}
}

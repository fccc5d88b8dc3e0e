package shipping

// Destinations where DDP routinely fails at the broker or costs more in
// duties handling than it saves; these always ship DDU.
var defaultDDPRestricted = []string{
	"AR", "BR", "BY", "CL", "EG", "ID", "IN", "KZ", "NG", "PE", "PK", "RU", "TR", "VE", "ZA",
}

// DefaultDDPRestrictedCountries returns a copy of the built-in restricted set.
func DefaultDDPRestrictedCountries() []string {
	out := make([]string, len(defaultDDPRestricted))
	copy(out, defaultDDPRestricted)
	return out
}

// ResolveIncoterm picks the Incoterm for a destination: DDU when the country
// is restricted, the configured default otherwise. An empty restricted list
// means "use the built-in set"; an empty default means DDU.
func ResolveIncoterm(destCountry string, configured Incoterm, restricted []string) Incoterm {
	if configured == "" {
		configured = IncotermDDU
	}
	if len(restricted) == 0 {
		restricted = defaultDDPRestricted
	}

	country := normalizeCountry(destCountry)
	for _, blocked := range restricted {
		if country == normalizeCountry(blocked) {
			return IncotermDDU
		}
	}
	return configured
}

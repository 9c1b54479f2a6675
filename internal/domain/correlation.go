package domain

// CorrelationGroup is a static set of instruments whose prices move together.
// Read-only at runtime.
type CorrelationGroup struct {
	Name    string
	Members []string
}

// InversePair is a static unordered pair of instruments expected to move
// oppositely.
type InversePair struct {
	A, B string
}

// CorrelationGroups mirrors the instrument universe: same-direction exposure
// inside one group doubles risk.
var CorrelationGroups = []CorrelationGroup{
	{Name: "us_equity", Members: []string{"MES", "IBUS500"}},
	{Name: "jpy_crosses", Members: []string{"EURJPY", "CADJPY", "USDJPY"}},
	{Name: "eur_pairs", Members: []string{"EURUSD", "EURJPY"}},
}

// InversePairs lists instruments with opposing theses: the same nominal
// direction on both sides is contradictory.
var InversePairs = []InversePair{
	{A: "XAUUSD", B: "USDJPY"},
	{A: "EURUSD", B: "USDJPY"},
}

// SharedGroups returns the names of every correlation group containing both
// instruments.
func SharedGroups(a, b string) []string {
	var shared []string
	for _, g := range CorrelationGroups {
		if containsInstrument(g.Members, a) && containsInstrument(g.Members, b) {
			shared = append(shared, g.Name)
		}
	}
	return shared
}

// IsInversePair reports whether the two instruments form a known inverse pair.
func IsInversePair(a, b string) bool {
	for _, p := range InversePairs {
		if (p.A == a && p.B == b) || (p.A == b && p.B == a) {
			return true
		}
	}
	return false
}

func containsInstrument(members []string, instrument string) bool {
	for _, m := range members {
		if m == instrument {
			return true
		}
	}
	return false
}

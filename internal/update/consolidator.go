package update

// NaiveConsolidator merges check results by availability alone.
//
// A component's consolidated result is the first positive result seen while
// walking the inputs in order. A negative result is kept only when no input
// reports an update for that component.
type NaiveConsolidator struct{}

// Consolidate implements Consolidator.
func (NaiveConsolidator) Consolidate(results []CheckResults) CheckResults {
	out := make(CheckResults)
	for _, set := range results {
		for name, r := range set {
			existing, seen := out[name]
			if !seen || (!existing.Available && r.Available) {
				out[name] = r
			}
		}
	}
	return out
}

package update

// ConfigPolicy allows checking every component except those explicitly
// disabled in its map.
type ConfigPolicy map[string]bool

// CanCheck implements ComponentPolicy.
func (p ConfigPolicy) CanCheck(c Component) bool {
	enabled, ok := p[c.Name()]
	return !ok || enabled
}

package update

import (
	"cmp"
	"regexp"
	"strconv"
	"strings"
)

var (
	numericRegex = regexp.MustCompile(`^\d+$`)

	// segments, optional milestone, optional nested tier, optional git describe suffix
	versionRegex = regexp.MustCompile(
		`^(\d+(?:\.\d+)*)(?:m(\d+))?(?:(a|b|rc)(\d+))?(?:-(\d+)-g([0-9a-f]{7}))?$`)
)

// Tier is a pre-release maturity level. Higher tiers are closer to a final release.
type Tier int

const (
	TierMilestone Tier = iota
	TierAlpha
	TierBeta
	TierReleaseCandidate
	TierFinal
)

// String returns the suffix letter(s) used for the tier in version strings.
func (t Tier) String() string {
	switch t {
	case TierMilestone:
		return "m"
	case TierAlpha:
		return "a"
	case TierBeta:
		return "b"
	case TierReleaseCandidate:
		return "rc"
	default:
		return ""
	}
}

var tierBySuffix = map[string]Tier{
	"a":  TierAlpha,
	"b":  TierBeta,
	"rc": TierReleaseCandidate,
}

type suffix struct {
	tier   Tier
	number int
}

// final stands in for a missing suffix; it outranks every pre-release tier.
var final = suffix{tier: TierFinal}

type form int

const (
	formInvalid form = iota
	formNumeric
	formStructured
)

// Version identifies a release of a component. It is either a bare build
// counter ("123"), a dotted release identifier with optional pre-release and
// git describe suffixes ("1.2.3m1rc8-17-gabcdeff"), or invalid.
//
// The zero value is an invalid version. Versions are immutable.
type Version struct {
	raw      string
	form     form
	number   int
	segments []int
	suffixes []suffix
	commits  int
	hash     string
}

// NumericVersion returns a build counter version. Negative counters are invalid.
func NumericVersion(n int) Version {
	v := Version{raw: strconv.Itoa(n)}
	if n < 0 {
		return v
	}
	v.form = formNumeric
	v.number = n
	return v
}

// NewVersion parses s. It never fails: input matching neither the numeric nor
// the structured grammar yields an invalid version that keeps s for display.
func NewVersion(s string) Version {
	v := Version{raw: s}

	if numericRegex.MatchString(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return v
		}
		v.form = formNumeric
		v.number = n
		return v
	}

	m := versionRegex.FindStringSubmatch(s)
	if m == nil {
		return v
	}

	parts := strings.Split(m[1], ".")
	segments := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return v
		}
		segments = append(segments, n)
	}

	var suffixes []suffix
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return v
		}
		suffixes = append(suffixes, suffix{tier: TierMilestone, number: n})
	}
	if m[3] != "" {
		n, err := strconv.Atoi(m[4])
		if err != nil {
			return v
		}
		suffixes = append(suffixes, suffix{tier: tierBySuffix[m[3]], number: n})
	}

	if m[5] != "" {
		n, err := strconv.Atoi(m[5])
		if err != nil {
			return v
		}
		v.commits = n
		v.hash = m[6]
	}

	v.form = formStructured
	v.segments = segments
	v.suffixes = suffixes
	return v
}

// String returns the version as it was given.
func (v Version) String() string {
	return v.raw
}

// IsValid reports whether v parsed as a numeric or structured version.
func (v Version) IsValid() bool {
	return v.form != formInvalid
}

// IsNumeric reports whether v is a bare build counter.
func (v Version) IsNumeric() bool {
	return v.form == formNumeric
}

// Segments returns a copy of the dotted integer segments of a structured version.
func (v Version) Segments() []int {
	if v.form != formStructured {
		return nil
	}
	out := make([]int, len(v.segments))
	copy(out, v.segments)
	return out
}

// Revision returns the git describe commit count and short hash, if present.
func (v Version) Revision() (commits int, hash string, ok bool) {
	return v.commits, v.hash, v.hash != ""
}

// Compare returns -1 if v is older than other, 0 if they are equivalent and
// 1 if v is newer.
//
// Invalid versions are equal to each other and older than every valid
// version. Build counters are older than every structured version.
func (v Version) Compare(other Version) int {
	switch {
	case !v.IsValid() && !other.IsValid():
		return 0
	case !v.IsValid():
		return -1
	case !other.IsValid():
		return 1
	}

	switch {
	case v.form == formNumeric && other.form == formNumeric:
		return cmp.Compare(v.number, other.number)
	case v.form == formNumeric:
		return -1
	case other.form == formNumeric:
		return 1
	}

	if c := compareSegments(v.segments, other.segments); c != 0 {
		return c
	}
	if c := compareSuffixes(v.suffixes, other.suffixes); c != 0 {
		return c
	}
	// commit counts only; hashes never order
	return cmp.Compare(v.commits, other.commits)
}

// Equal reports whether v and other compare as equivalent.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// NewerThan reports whether v is strictly newer than other.
func (v Version) NewerThan(other Version) bool {
	return v.Compare(other) > 0
}

// MarshalText implements encoding.TextMarshaler.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.raw), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(text []byte) error {
	*v = NewVersion(string(text))
	return nil
}

func compareSegments(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(a), len(b))
}

// compareSuffixes walks the milestone and its nested tier in step. A missing
// suffix on one side counts as a final release at that level.
func compareSuffixes(a, b []suffix) int {
	for i := 0; i < len(a) || i < len(b); i++ {
		x, y := suffixAt(a, i), suffixAt(b, i)
		if c := cmp.Compare(x.tier, y.tier); c != 0 {
			return c
		}
		if c := cmp.Compare(x.number, y.number); c != 0 {
			return c
		}
	}
	return 0
}

func suffixAt(s []suffix, i int) suffix {
	if i < len(s) {
		return s[i]
	}
	return final
}

// NormalizeVersion removes the 'v' prefix release tags commonly carry.
func NormalizeVersion(s string) string {
	return strings.TrimPrefix(s, "v")
}

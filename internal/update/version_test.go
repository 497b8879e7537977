package update

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestNewVersionValidity(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		numeric   bool
	}{
		{name: "int as string", input: "123", wantValid: true, numeric: true},
		{name: "dotted", input: "1.2.3", wantValid: true},
		{name: "single segment with suffix", input: "2rc1", wantValid: true},
		{name: "release candidate", input: "0.1.2rc3", wantValid: true},
		{name: "milestone with nested tier", input: "1.2.3m1rc8", wantValid: true},
		{name: "git describe", input: "1.2-17-gabcdeff", wantValid: true},
		{name: "everything", input: "1.2.3m2b4-3-g0123abc", wantValid: true},
		{name: "empty", input: "", wantValid: false},
		{name: "prose", input: "Hello!", wantValid: false},
		{name: "uppercase hash", input: "0.1.3-12-gABCDEFG", wantValid: false},
		{name: "short hash", input: "0.1.3-12-g123", wantValid: false},
		{name: "long hash", input: "0.1.3-12-g123123123", wantValid: false},
		{name: "tier without number", input: "1.2a", wantValid: false},
		{name: "trailing dot", input: "1.2.", wantValid: false},
		{name: "semver prerelease", input: "1.0.0-rc.1", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewVersion(tt.input)
			if v.IsValid() != tt.wantValid {
				t.Errorf("NewVersion(%q).IsValid() = %v, want %v", tt.input, v.IsValid(), tt.wantValid)
			}
			if v.IsNumeric() != tt.numeric {
				t.Errorf("NewVersion(%q).IsNumeric() = %v, want %v", tt.input, v.IsNumeric(), tt.numeric)
			}
			if v.String() != tt.input {
				t.Errorf("String() = %q, want %q", v.String(), tt.input)
			}
		})
	}
}

func TestZeroVersionIsInvalid(t *testing.T) {
	var v Version
	if v.IsValid() {
		t.Error("zero Version should be invalid")
	}
	if v.String() != "" {
		t.Errorf("zero Version String() = %q, want empty", v.String())
	}
}

func TestNumericVersion(t *testing.T) {
	v := NumericVersion(123)
	if !v.IsValid() || !v.IsNumeric() {
		t.Error("NumericVersion(123) should be a valid build counter")
	}
	if v.String() != "123" {
		t.Errorf("String() = %q, want 123", v.String())
	}
	if NumericVersion(-1).IsValid() {
		t.Error("negative build counters should be invalid")
	}
}

func TestVersionAccessors(t *testing.T) {
	v := NewVersion("1.2.3m1rc8-17-gabcdeff")

	segs := v.Segments()
	if fmt.Sprint(segs) != "[1 2 3]" {
		t.Errorf("Segments() = %v, want [1 2 3]", segs)
	}
	segs[0] = 99
	if v.Segments()[0] != 1 {
		t.Error("Segments() must return a copy")
	}

	commits, hash, ok := v.Revision()
	if !ok || commits != 17 || hash != "abcdeff" {
		t.Errorf("Revision() = %d, %q, %v", commits, hash, ok)
	}

	if _, _, ok := NewVersion("1.2").Revision(); ok {
		t.Error("Revision() should report no revision for a plain version")
	}
	if NumericVersion(4).Segments() != nil {
		t.Error("numeric versions have no segments")
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		v1   Version
		v2   Version
		want int // 1 if v1 > v2, 0 if equal, -1 if v1 < v2
	}{
		// Invalid
		{name: "invalid versions are equal", v1: Version{}, v2: Version{}, want: 0},
		{name: "invalid prose equals zero", v1: NewVersion("Hello!"), v2: Version{}, want: 0},
		{name: "invalid is older than numeric", v1: Version{}, v2: NumericVersion(0), want: -1},
		{name: "structured is newer than invalid", v1: NewVersion("0.1"), v2: NewVersion("junk"), want: 1},

		// Numeric
		{name: "equal numeric", v1: NumericVersion(123), v2: NumericVersion(123), want: 0},
		{name: "numeric and int string", v1: NumericVersion(123), v2: NewVersion("123"), want: 0},
		{name: "greater numeric", v1: NumericVersion(124), v2: NumericVersion(123), want: 1},
		{name: "lesser numeric", v1: NumericVersion(123), v2: NumericVersion(124), want: -1},
		{name: "numeric older than string", v1: NumericVersion(123), v2: NewVersion("0.1"), want: -1},
		{name: "string newer than numeric", v1: NewVersion("0.1"), v2: NumericVersion(123), want: 1},

		// Segments
		{name: "equal strings", v1: NewVersion("1.2.3"), v2: NewVersion("1.2.3"), want: 0},
		{name: "longer is newer", v1: NewVersion("1.2.3"), v2: NewVersion("1.2.3.1"), want: -1},
		{name: "shorter is older", v1: NewVersion("1.2.3.1"), v2: NewVersion("1.2.3"), want: 1},
		{name: "patch", v1: NewVersion("1.2.3"), v2: NewVersion("1.2.4"), want: -1},
		{name: "minor", v1: NewVersion("1.2.3"), v2: NewVersion("1.3.3"), want: -1},
		{name: "major", v1: NewVersion("1.2.3"), v2: NewVersion("2.2.3"), want: -1},
		{name: "major beats length", v1: NewVersion("1.2.3"), v2: NewVersion("2.0"), want: -1},
		{name: "lower is older", v1: NewVersion("2.0"), v2: NewVersion("1.2.3"), want: 1},
		{name: "numeric segments not lexical", v1: NewVersion("0.10"), v2: NewVersion("0.9"), want: 1},

		// Segments dominate suffixes
		{name: "rc2 older than next a1", v1: NewVersion("1.2.3rc2"), v2: NewVersion("1.2.4a1"), want: -1},
		{name: "b1 older than minor m8", v1: NewVersion("1.2.3b1"), v2: NewVersion("1.3.3m8"), want: -1},
		{name: "m8 older than major rc2", v1: NewVersion("1.2.3m8"), v2: NewVersion("2.2.3rc2"), want: -1},
		{name: "a6 older than 2.0b4", v1: NewVersion("1.2.3a6"), v2: NewVersion("2.0b4"), want: -1},
		{name: "next a1 newer than rc2", v1: NewVersion("1.2.4a1"), v2: NewVersion("1.2.3rc2"), want: 1},

		// Tiers
		{name: "higher rc", v1: NewVersion("1.2.3rc1"), v2: NewVersion("1.2.3rc2"), want: -1},
		{name: "lower rc", v1: NewVersion("1.2.3rc2"), v2: NewVersion("1.2.3rc1"), want: 1},
		{name: "alpha before beta", v1: NewVersion("1.2.3a8"), v2: NewVersion("1.2.3b5"), want: -1},
		{name: "milestone before alpha", v1: NewVersion("1.2.3m8"), v2: NewVersion("1.2.3a1"), want: -1},
		{name: "beta before rc", v1: NewVersion("1.2.3b8"), v2: NewVersion("1.2.3rc1"), want: -1},
		{name: "rc before final", v1: NewVersion("1.2.3rc8"), v2: NewVersion("1.2.3"), want: -1},
		{name: "final after rc", v1: NewVersion("1.2.3"), v2: NewVersion("1.2.3rc8"), want: 1},
		{name: "alpha after milestone", v1: NewVersion("1.2.3a1"), v2: NewVersion("1.2.3m8"), want: 1},

		// Tiers nested in milestones
		{name: "m1rc1 before m1rc2", v1: NewVersion("1.2.3m1rc1"), v2: NewVersion("1.2.3m1rc2"), want: -1},
		{name: "m1a8 before m1b5", v1: NewVersion("1.2.3m1a8"), v2: NewVersion("1.2.3m1b5"), want: -1},
		{name: "m1b8 before m1rc1", v1: NewVersion("1.2.3m1b8"), v2: NewVersion("1.2.3m1rc1"), want: -1},
		{name: "m1rc8 before m1", v1: NewVersion("1.2.3m1rc8"), v2: NewVersion("1.2.3m1"), want: -1},
		{name: "m1 after m1rc8", v1: NewVersion("1.2.3m1"), v2: NewVersion("1.2.3m1rc8"), want: 1},
		{name: "m2a1 after m1rc8", v1: NewVersion("1.2.3m2a1"), v2: NewVersion("1.2.3m1rc8"), want: 1},

		// Git describe
		{name: "more commits is newer", v1: NewVersion("1.2-17-gabcdeff"), v2: NewVersion("1.2-18-gabcdeff"), want: -1},
		{name: "fewer commits is older", v1: NewVersion("1.2-18-gabcdeff"), v2: NewVersion("1.2-17-gabcdeff"), want: 1},
		{name: "hash ignored", v1: NewVersion("1.2-17-g1234567"), v2: NewVersion("1.2-17-gabcdeff"), want: 0},
		{name: "tag older than commits after it", v1: NewVersion("1.2"), v2: NewVersion("1.2-1-gabcdeff"), want: -1},
		{name: "segments before commits", v1: NewVersion("1.3"), v2: NewVersion("1.2-99-gabcdeff"), want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v1.Compare(tt.v2); got != tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d", tt.v1, tt.v2, got, tt.want)
			}
			if got := tt.v2.Compare(tt.v1); got != -tt.want {
				t.Errorf("Compare(%q, %q) = %d, want %d (antisymmetry)", tt.v2, tt.v1, got, -tt.want)
			}
		})
	}
}

func TestVersionTotalOrder(t *testing.T) {
	inputs := []string{
		"1", "7", "123", "0.1", "0.1.0", "1.2", "1.2-3-gabcdeff", "1.2-17-g1234567",
		"1.2.3m1", "1.2.3m1a2", "1.2.3m1rc8", "1.2.3m2", "1.2.3a1", "1.2.3b5",
		"1.2.3rc1", "1.2.3rc2", "1.2.3", "1.2.3.1", "1.2.4a1", "2.0b4", "2.0",
		"10.0", "", "bogus",
	}
	versions := make([]Version, 0, len(inputs)+1)
	for _, s := range inputs {
		versions = append(versions, NewVersion(s))
	}
	versions = append(versions, NumericVersion(123))

	for _, a := range versions {
		if a.Compare(a) != 0 {
			t.Errorf("%q is not equal to itself", a)
		}
		for _, b := range versions {
			ab, ba := a.Compare(b), b.Compare(a)
			if ab != -ba {
				t.Errorf("Compare(%q, %q) = %d but reverse = %d", a, b, ab, ba)
			}
			for _, c := range versions {
				if ab <= 0 && b.Compare(c) <= 0 && a.Compare(c) > 0 {
					t.Errorf("transitivity broken: %q <= %q <= %q but %q > %q", a, b, c, a, c)
				}
			}
		}
	}
}

func TestVersionEqualAndNewerThan(t *testing.T) {
	if !NewVersion("0.1").Equal(NewVersion("0.1")) {
		t.Error("0.1 should equal 0.1")
	}
	if !NumericVersion(1).Equal(NewVersion("1")) {
		t.Error("NumericVersion(1) should equal \"1\"")
	}
	if !NewVersion("1.1").NewerThan(NewVersion("1.0")) {
		t.Error("1.1 should be newer than 1.0")
	}
	if NewVersion("1.0").NewerThan(NewVersion("1.0")) {
		t.Error("a version is not newer than itself")
	}
}

func TestVersionTextRoundTrip(t *testing.T) {
	type doc struct {
		Version Version `json:"version"`
	}

	var d doc
	if err := json.Unmarshal([]byte(`{"version":"1.2.3rc1"}`), &d); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !d.Version.Equal(NewVersion("1.2.3rc1")) {
		t.Errorf("decoded version = %q", d.Version)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(out) != `{"version":"1.2.3rc1"}` {
		t.Errorf("Marshal() = %s", out)
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "with v prefix",
			input: "v0.8.2",
			want:  "0.8.2",
		},
		{
			name:  "without v prefix",
			input: "0.8.2",
			want:  "0.8.2",
		},
		{
			name:  "with release candidate",
			input: "v1.0.0rc1",
			want:  "1.0.0rc1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeVersion(tt.input); got != tt.want {
				t.Errorf("NormalizeVersion() = %v, want %v", got, tt.want)
			}
		})
	}
}

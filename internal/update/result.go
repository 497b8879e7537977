package update

import (
	"fmt"
	"sort"

	"github.com/parley-irc/parley/internal/types"
)

// CheckResult is one source's verdict for one component.
type CheckResult struct {
	Component Component
	Available bool
	// Version, FriendlyVersion and URL describe the update when Available is set.
	Version         Version
	FriendlyVersion string
	URL             string
	// Source names the checker that produced the result.
	Source string
}

// NoUpdate returns a negative result for c.
func NoUpdate(c Component, source string) CheckResult {
	return CheckResult{Component: c, Source: source}
}

// UpdateAvailable returns a positive result for c pointing at url.
func UpdateAvailable(c Component, source string, v Version, friendly, url string) CheckResult {
	if friendly == "" {
		friendly = v.String()
	}
	return CheckResult{
		Component:       c,
		Available:       true,
		Version:         v,
		FriendlyVersion: friendly,
		URL:             url,
		Source:          source,
	}
}

// String describes the result for logs.
func (r CheckResult) String() string {
	name := "<nil>"
	if r.Component != nil {
		name = r.Component.Name()
	}
	if !r.Available {
		return fmt.Sprintf("%s: up to date (%s)", name, r.Source)
	}
	return fmt.Sprintf("%s: %s available (%s)", name, r.FriendlyVersion, r.Source)
}

// CheckResults maps component names to verdicts.
type CheckResults map[string]CheckResult

// Put stores r under its component's name.
func (rs CheckResults) Put(r CheckResult) {
	rs[r.Component.Name()] = r
}

// Available returns the positive results sorted by component name.
func (rs CheckResults) Available() []CheckResult {
	var out []CheckResult
	for _, name := range rs.Names() {
		if rs[name].Available {
			out = append(out, rs[name])
		}
	}
	return out
}

// Names returns the component names in sorted order.
func (rs CheckResults) Names() []string {
	names := make([]string, 0, len(rs))
	for name := range rs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RetrievalResult is the outcome of retrieving the update described by a check result.
type RetrievalResult interface {
	CheckResult() CheckResult
	Successful() bool
	Kind() types.ResultKind
}

// SingleFileResult is a retrieval that produced one file.
type SingleFileResult struct {
	Check CheckResult
	Path  string
}

// CheckResult implements RetrievalResult.
func (r *SingleFileResult) CheckResult() CheckResult { return r.Check }

// Successful implements RetrievalResult.
func (r *SingleFileResult) Successful() bool { return true }

// Kind implements RetrievalResult.
func (r *SingleFileResult) Kind() types.ResultKind { return types.ResultSingleFile }

// ArchiveResult is a retrieval that produced a .tar.gz or .zip archive.
type ArchiveResult struct {
	Check CheckResult
	Path  string
}

// CheckResult implements RetrievalResult.
func (r *ArchiveResult) CheckResult() CheckResult { return r.Check }

// Successful implements RetrievalResult.
func (r *ArchiveResult) Successful() bool { return true }

// Kind implements RetrievalResult.
func (r *ArchiveResult) Kind() types.ResultKind { return types.ResultArchive }

// FailedRetrieval records a retrieval that produced no artifact.
type FailedRetrieval struct {
	Check CheckResult
	Err   error
}

// CheckResult implements RetrievalResult.
func (r *FailedRetrieval) CheckResult() CheckResult { return r.Check }

// Successful implements RetrievalResult.
func (r *FailedRetrieval) Successful() bool { return false }

// Kind implements RetrievalResult.
func (r *FailedRetrieval) Kind() types.ResultKind { return types.ResultFailed }

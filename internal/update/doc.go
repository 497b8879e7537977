// Package update finds, retrieves and installs updates for the parley client
// and its plugins.
//
// A check cycle runs every Checker concurrently over the registered
// components, then merges their answers with a Consolidator into one
// CheckResult per component. Positive results are turned into artifacts by a
// RetrievalStrategy and applied by the first InstallationStrategy whose
// CanHandle accepts the artifact. Strategies dispatch on the kind tags of the
// component and of the retrieval result. Installs run in the background and
// report progress, failure and completion to listeners.
//
// Manager wires these pieces together and tracks a status per component.
package update

// Package kernel provides the work-division and launch primitives shared by
// the parallel reconstruction stages.
//
// A launch runs a fixed number of independent groups with bounded
// concurrency and blocks until every group finishes. Threads inside a group
// cooperate through a Barrier; groups never synchronise with each other
// except through a SlotCounter. Launches cannot be cancelled once started.
//
// Dependency rule: kernel depends on nothing else in internal/reco.
package kernel

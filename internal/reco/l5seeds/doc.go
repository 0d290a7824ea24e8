// Package l5seeds owns Layer 5 (Seeds): building inner-middle-outer
// spacepoint triplets consistent with a helix from the beam line, scoring
// them and keeping the best few per middle spacepoint.
//
// Every middle spacepoint is searched independently against a read-only
// grid, so the parallel finder needs no synchronisation beyond the final
// concatenation.
//
// Dependency rule: L5 may depend on L1-L4 and kernel, never on L6+.
package l5seeds

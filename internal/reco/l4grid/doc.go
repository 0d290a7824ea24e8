// Package l4grid owns Layer 4 (Grid): binning spacepoints by azimuth and
// z with a count, prefix-sum and scatter pass, and answering neighbourhood
// queries with azimuthal wraparound.
//
// Dependency rule: L4 may depend on L1-L3 and kernel, never on L5+.
package l4grid

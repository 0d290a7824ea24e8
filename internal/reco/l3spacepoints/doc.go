// Package l3spacepoints owns Layer 3 (Spacepoints): projecting each
// measurement from its module frame into global coordinates and
// propagating the local variances into a global covariance.
//
// Dependency rule: L3 may depend on L1, L2 and kernel, never on L4+.
package l3spacepoints

// Package l2clusters owns Layer 2 (Clusters) of the reconstruction data
// model.
//
// Responsibilities: grouping sorted cells into measurements with a
// connected-component labelling, either sequentially (SparseCCL union-find)
// or in parallel over bounded partitions, and recording the
// cell-to-measurement links.
//
// Dependency rule: L2 may depend on L1 and kernel, never on L3+.
package l2clusters

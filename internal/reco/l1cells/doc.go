// Package l1cells owns Layer 1 of the reconstruction data model: raw
// cells and the detector geometry they are read against.
//
// Responsibilities: the Cell record, Module placement transforms, the
// immutable Geometry table, and the module-grouped cell ordering every
// clustering implementation relies on.
//
// Dependency rule: L1 depends on nothing else in internal/reco.
package l1cells

// Package l6params owns Layer 6 (Parameters): a closed-form estimate of
// perigee track parameters from each seed's three spacepoints and the
// magnetic field.
//
// Dependency rule: L6 may depend on L1-L5, never on pipeline.
package l6params

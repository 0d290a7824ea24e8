// Package pipeline is the composition root of the reconstruction chain.
//
// It wires the layer packages (l2clusters through l6params) into a
// reference variant built from the sequential stages and an accelerated
// variant built from the parallel ones, runs both on each event, and hands
// the results to the validator. None of the layer packages import
// pipeline.
package pipeline

// Package synth generates deterministic barrel detector geometries and
// events of helical tracks crossing them, for replay through the pipeline
// without external input files.
package synth

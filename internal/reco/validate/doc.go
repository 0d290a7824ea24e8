// Package validate compares the collections produced by two pipeline
// variants for the same event. Entries are matched on identities derived
// from the input cells, never on position in the output, and every entry
// is visited so one run reports the full picture.
package validate

// Package fields validates, synthesizes and transforms submission fields.
//
// The three steps run in a fixed order inside the entry pipeline:
// Validate, then Generate, then Transform. Each step mutates the Fields map
// it is given.
package fields

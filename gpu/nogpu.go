//go:build nogpu

// Package gpu registers nothing when built with the nogpu tag; automata.New
// then selects the CPU backend.
package gpu

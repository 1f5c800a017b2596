// Package shaders provides embedded GLSL compute shader sources.
package shaders

import _ "embed"

// MorphCompute accumulates active morph targets into fixed-point offsets.
// GROUP_SIZE must be defined before compiling.
//
//go:embed morph.comp
var MorphCompute string

// SkinCompute poses vertices with the bone palette.
//
//go:embed skin.comp
var SkinCompute string

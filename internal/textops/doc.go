// Package textops implements the native string kernels shared by the source
// graph session and the ai.onnx.contrib operator library: RE2 regex replace,
// element-wise join, separator split, FarmHash bucketing and ASCII case
// mapping.
//
// Kernels operate on plain Go strings and slices; tensor plumbing (shapes,
// broadcasting, axis handling) lives with the callers.
package textops

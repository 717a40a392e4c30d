// Package operators implements the ONNX operator handlers used by the
// runtime session.
//
// Handlers are looked up by (domain, op_type). The default domain carries
// the dtype-generic standard operators needed by converted string graphs
// (Identity, Constant, Reshape, Shape, Size, Expand, Unsqueeze, Squeeze,
// Concat). Custom domains are supplied as a Library and registered per
// session, never globally.
package operators

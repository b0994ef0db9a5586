// Package onnx is the boundary to the inference runtime that executes the encoder
// and decoder graphs. The onnxruntime-backed implementation is compiled with the
// `onnxruntime` build tag; without it Open reports ErrUnavailable.
package onnx

package onnx

import (
	"errors"
	"fmt"
)

// ErrUnavailable is returned by Open when the binary was built without a runtime backend.
var ErrUnavailable = errors.New("onnx runtime not available")

// Tensor is a named, dense, row-major tensor passed to or returned from a Graph.
// Data holds one of []float32, []int64 or []bool.
type Tensor struct {
	Name  string
	Shape []int64
	Data  any
}

// Graph executes one loaded model graph.
type Graph interface {
	// Run feeds the named inputs and returns every graph output in OutputNames order.
	Run(inputs []Tensor) ([]Tensor, error)
	InputNames() []string
	OutputNames() []string
	Close() error
}

// Runtime loads graphs from model files.
type Runtime interface {
	Open(path string) (Graph, error)
	Close() error
}

// Elements returns the number of elements described by shape.
func Elements(shape []int64) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// Float32s returns the tensor payload as float32 after checking it matches the shape.
func (t Tensor) Float32s() ([]float32, error) {
	data, ok := t.Data.([]float32)
	if !ok {
		return nil, fmt.Errorf("tensor %q: expected float32 data, got %T", t.Name, t.Data)
	}
	if int64(len(data)) != Elements(t.Shape) {
		return nil, fmt.Errorf("tensor %q: %d elements do not match shape %v", t.Name, len(data), t.Shape)
	}
	return data, nil
}

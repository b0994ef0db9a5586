//go:build !onnxruntime

package onnx

import "fmt"

// Default stub (no cgo) so the project builds without the onnxruntime tag.
type stubRuntime struct{}

func NewRuntime(libraryPath string, threads int) (Runtime, error) { return stubRuntime{}, nil }
func (stubRuntime) Close() error                                  { return nil }
func (stubRuntime) Open(path string) (Graph, error) {
	return nil, fmt.Errorf("%w: built without the onnxruntime tag (%s)", ErrUnavailable, path)
}

//go:build !whisper_cpp

package whisper

import "fmt"

// NewEngine always fails so the project builds without cgo.
func NewEngine(opts Options) (Engine, error) {
	return nil, fmt.Errorf("%w: rebuild with -tags whisper_cpp", ErrUnavailable)
}

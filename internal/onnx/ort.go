//go:build onnxruntime

package onnx

import (
	"fmt"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

type ortRuntime struct {
	threads int
}

// NewRuntime initializes the shared onnxruntime environment. libraryPath may be empty
// to use the library's default lookup.
func NewRuntime(libraryPath string, threads int) (Runtime, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	log.Info().Str("library", libraryPath).Int("threads", threads).Msg("onnx: runtime initialized")
	return &ortRuntime{threads: threads}, nil
}

func (r *ortRuntime) Open(path string) (Graph, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}
	g := &ortGraph{
		inputs:  make([]string, len(inputs)),
		outputs: make([]string, len(outputs)),
	}
	for i, info := range inputs {
		g.inputs[i] = info.Name
	}
	for i, info := range outputs {
		g.outputs[i] = info.Name
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer opts.Destroy()
	if r.threads > 0 {
		if err := opts.SetIntraOpNumThreads(r.threads); err != nil {
			return nil, fmt.Errorf("set threads: %w", err)
		}
	}

	g.session, err = ort.NewDynamicAdvancedSession(path, g.inputs, g.outputs, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("inputs", len(g.inputs)).Int("outputs", len(g.outputs)).Msg("onnx: graph loaded")
	return g, nil
}

func (r *ortRuntime) Close() error {
	return ort.DestroyEnvironment()
}

type ortGraph struct {
	session *ort.DynamicAdvancedSession
	inputs  []string
	outputs []string
}

func (g *ortGraph) InputNames() []string  { return g.inputs }
func (g *ortGraph) OutputNames() []string { return g.outputs }

func (g *ortGraph) Close() error {
	if g.session == nil {
		return nil
	}
	err := g.session.Destroy()
	g.session = nil
	return err
}

func (g *ortGraph) Run(inputs []Tensor) ([]Tensor, error) {
	byName := make(map[string]Tensor, len(inputs))
	for _, t := range inputs {
		byName[t.Name] = t
	}

	in := make([]ort.Value, len(g.inputs))
	defer destroyAll(in)
	for i, name := range g.inputs {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("missing input %q", name)
		}
		v, err := toValue(t)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		in[i] = v
	}

	// nil outputs are allocated by onnxruntime with the shapes it computes.
	out := make([]ort.Value, len(g.outputs))
	defer destroyAll(out)
	if err := g.session.Run(in, out); err != nil {
		return nil, err
	}

	result := make([]Tensor, len(out))
	for i, v := range out {
		t, err := fromValue(g.outputs[i], v)
		if err != nil {
			return nil, err
		}
		result[i] = t
	}
	return result, nil
}

func toValue(t Tensor) (ort.Value, error) {
	shape := ort.NewShape(t.Shape...)
	switch data := t.Data.(type) {
	case []float32:
		// zero-element tensors still need a valid backing pointer
		if len(data) == 0 {
			data = make([]float32, 1)
		}
		v, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, err
		}
		return v, nil
	case []int64:
		if len(data) == 0 {
			data = make([]int64, 1)
		}
		v, err := ort.NewTensor(shape, data)
		if err != nil {
			return nil, err
		}
		return v, nil
	case []bool:
		raw := make([]byte, len(data))
		for i, b := range data {
			if b {
				raw[i] = 1
			}
		}
		v, err := ort.NewCustomDataTensor(shape, raw, ort.TensorElementDataTypeBool)
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported tensor data %T", t.Data)
	}
}

func fromValue(name string, v ort.Value) (Tensor, error) {
	switch x := v.(type) {
	case *ort.Tensor[float32]:
		data := x.GetData()
		return Tensor{
			Name:  name,
			Shape: append([]int64(nil), x.GetShape()...),
			Data:  append([]float32(nil), data...),
		}, nil
	case *ort.Tensor[int64]:
		data := x.GetData()
		return Tensor{
			Name:  name,
			Shape: append([]int64(nil), x.GetShape()...),
			Data:  append([]int64(nil), data...),
		}, nil
	default:
		return Tensor{}, fmt.Errorf("output %q: unsupported value %T", name, v)
	}
}

func destroyAll(values []ort.Value) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

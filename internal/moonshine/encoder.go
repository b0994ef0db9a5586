package moonshine

import (
	"fmt"

	"github.com/obiente/translate/gomoonshine/internal/onnx"
)

const defaultEncoderInput = "input_values"

// HiddenStates is the encoder output, shape [batch, encSeqLen, hiddenSize].
type HiddenStates struct {
	Shape [3]int64
	Data  []float32
}

// Encoder runs the encoder graph. It keeps no state between calls.
type Encoder struct {
	graph onnx.Graph
	input string
}

func NewEncoder(g onnx.Graph) *Encoder {
	input := defaultEncoderInput
	if names := g.InputNames(); len(names) > 0 {
		input = names[0]
	}
	return &Encoder{graph: g, input: input}
}

// Encode runs a single-row batch of normalized samples through the encoder.
func (e *Encoder) Encode(samples []float32) (HiddenStates, error) {
	outputs, err := e.graph.Run([]onnx.Tensor{{
		Name:  e.input,
		Shape: []int64{1, int64(len(samples))},
		Data:  samples,
	}})
	if err != nil {
		return HiddenStates{}, fmt.Errorf("%w: encoder: %w", ErrInference, err)
	}
	if len(outputs) == 0 {
		return HiddenStates{}, fmt.Errorf("%w: encoder returned no outputs", ErrInference)
	}
	out := outputs[0]
	if len(out.Shape) != 3 {
		return HiddenStates{}, fmt.Errorf("%w: unexpected encoder output shape %v", ErrInference, out.Shape)
	}
	data, err := out.Float32s()
	if err != nil {
		return HiddenStates{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return HiddenStates{
		Shape: [3]int64{out.Shape[0], out.Shape[1], out.Shape[2]},
		Data:  data,
	}, nil
}

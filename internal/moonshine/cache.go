package moonshine

import "fmt"

// Module distinguishes decoder self-attention from encoder cross-attention caches.
type Module int

const (
	SelfAttention Module = iota
	CrossAttention
)

func (m Module) String() string {
	if m == CrossAttention {
		return "encoder"
	}
	return "decoder"
}

// Kind is the key or value half of an attention cache.
type Kind int

const (
	Key Kind = iota
	Value
)

func (k Kind) String() string {
	if k == Value {
		return "value"
	}
	return "key"
}

// Slot identifies one cache tensor.
type Slot struct {
	Layer  int
	Module Module
	Kind   Kind
}

// InputName is the decoder graph input that receives this slot.
func (s Slot) InputName() string {
	return fmt.Sprintf("past_key_values.%d.%s.%s", s.Layer, s.Module, s.Kind)
}

// OutputName is the decoder graph output that carries the updated slot.
func (s Slot) OutputName() string {
	return fmt.Sprintf("present.%d.%s.%s", s.Layer, s.Module, s.Kind)
}

func (s Slot) index() int {
	return (s.Layer*2+int(s.Module))*2 + int(s.Kind)
}

// Slots lists every cache slot for a decoder with the given depth, in the order the
// decoder graph consumes and produces them: layer, then self before cross, then key before value.
func Slots(layers int) []Slot {
	out := make([]Slot, 0, layers*4)
	for layer := 0; layer < layers; layer++ {
		for _, m := range []Module{SelfAttention, CrossAttention} {
			for _, k := range []Kind{Key, Value} {
				out = append(out, Slot{Layer: layer, Module: m, Kind: k})
			}
		}
	}
	return out
}

// CacheTensor has shape [batch, kvHeads, seqLen, headDim].
type CacheTensor struct {
	Shape [4]int64
	Data  []float32
}

func (t CacheTensor) SeqLen() int64 { return t.Shape[2] }

// KVCache stores one tensor per slot for a single transcription call.
// It enforces nothing beyond storage; the generation loop owns the write policy.
type KVCache struct {
	slots   []Slot
	tensors []CacheTensor
}

// NewKVCache returns a cache where every slot holds an empty (seqLen 0) tensor.
func NewKVCache(cfg ModelConfig, batch int) *KVCache {
	slots := Slots(cfg.DecoderLayers)
	c := &KVCache{
		slots:   slots,
		tensors: make([]CacheTensor, len(slots)),
	}
	for _, s := range slots {
		c.tensors[s.index()] = CacheTensor{
			Shape: [4]int64{int64(batch), int64(cfg.NumKeyValueHeads), 0, int64(cfg.HeadDim)},
			Data:  []float32{},
		}
	}
	return c
}

func (c *KVCache) Slots() []Slot { return c.slots }

func (c *KVCache) Get(s Slot) CacheTensor { return c.tensors[s.index()] }

func (c *KVCache) Set(s Slot, t CacheTensor) { c.tensors[s.index()] = t }

// Package moonshine runs Moonshine encoder/decoder speech recognition models.
//
// A Session owns the read-only model graphs, configuration and tokenizer. Each
// Transcribe call pads the input to half a second, encodes it once and then runs
// the merged decoder greedily, one token per step. The first step computes the
// cross-attention cache from the encoder output; later steps set
// use_cache_branch and feed back the growing self-attention cache together with
// the unchanged cross-attention tensors from step 0. Generation stops when every
// row has produced end-of-sequence after at least MinGenTokens steps, or when the
// budget derived from the audio length runs out.
package moonshine

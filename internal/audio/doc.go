// Package audio decodes WAV input into mono float32 PCM, resamples it to the model
// rate, pads very short utterances and writes debug copies back to disk.
package audio

//go:build onnx

package main

import (
	"github.com/becomeliminal/nim-persona/config"
	"github.com/becomeliminal/nim-persona/memory"
	"github.com/becomeliminal/nim-persona/memory/embedder/onnx"
)

func newONNXEmbedder(cfg config.Config) (memory.Embedder, func(), error) {
	e, err := onnx.New(onnx.Config{
		ModelPath:         cfg.ONNXModelPath,
		TokenizerPath:     cfg.ONNXTokenizerPath,
		SharedLibraryPath: cfg.ONNXLibraryPath,
	})
	if err != nil {
		return nil, nil, err
	}
	return e, func() { e.Close() }, nil
}

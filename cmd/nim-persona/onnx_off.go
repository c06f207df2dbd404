//go:build !onnx

package main

import (
	"errors"

	"github.com/becomeliminal/nim-persona/config"
	"github.com/becomeliminal/nim-persona/memory"
)

func newONNXEmbedder(cfg config.Config) (memory.Embedder, func(), error) {
	return nil, nil, errors.New("binary built without ONNX support; rebuild with -tags onnx")
}

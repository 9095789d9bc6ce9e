package core

import (
	"github.com/gabstv/go-bsdiff/pkg/bsdiff"
	"github.com/gabstv/go-bsdiff/pkg/bspatch"
)

type BinaryDiffCodec struct{}

func NewBinaryDiffCodec() BinaryDiffCodec { return BinaryDiffCodec{} }

func (BinaryDiffCodec) Diff(old, new []byte) ([]byte, error) {
	return bsdiff.Bytes(old, new)
}

func (BinaryDiffCodec) Apply(old, patch []byte) ([]byte, error) {
	return bspatch.Bytes(old, patch)
}

// Package codec provides the pluggable compression algorithm capability
// (spec §9: "Callback tables of function pointers... become a Codec
// capability").
package codec

import "fmt"

// Props describes a codec's static properties: whether it benefits from an
// explicit level, its id for adaptive-mode sub-algo encoding, and its
// on-wire algo_tag.
type Props struct {
	Name       string
	AlgoTag    [8]byte
	HasLevel   bool
	MaxLevel   int
	AdaptiveID uint8 // 1..3, or 0 if not selectable in adaptive mode
}

// Codec is the capability interface a compression algorithm implements.
// It replaces the function-pointer table the original design used per
// algorithm (spec §9).
type Codec interface {
	// Init prepares per-stream state (e.g. pooled encoders) for level.
	Init(level int) error
	// Deinit releases per-stream state.
	Deinit()
	// Compress returns the compressed form of src at the codec's configured
	// level. The caller (TransformStack) is responsible for the
	// does-it-shrink fallback to UNCOMPRESSED.
	Compress(src []byte) ([]byte, error)
	// Decompress restores src (previously produced by Compress) to its
	// original length dstLen.
	Decompress(src []byte, dstLen int) ([]byte, error)
	// Stats reports a short operator-facing description of the last
	// operation (used by the CLI's -M/-C flags).
	Stats() string
	// Props reports the codec's static properties.
	Props() Props
}

// Adaptive is implemented by the "adapt" composite codec; TransformStack
// type-asserts against it to record/consume the winning child's sub-algo
// id in the chunk flag byte.
type Adaptive interface {
	Codec
	LastWinner() uint8
	DecompressWith(subAlgo uint8, src []byte, dstLen int) ([]byte, error)
}

// ErrUnknownAlgo is returned by the registry for an unrecognized algo name.
type ErrUnknownAlgo struct{ Name string }

func (e *ErrUnknownAlgo) Error() string { return fmt.Sprintf("codec: unknown algorithm %q", e.Name) }

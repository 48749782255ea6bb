package cryptobind

import (
	"crypto/hmac"
	"hash"

	"github.com/go-pcompress/pcompress/internal/digest"
)

// ChunkMAC returns an HMAC hash.Hash keyed for a single chunk, so a
// tampered or reordered chunk cannot be re-authenticated with another
// chunk's tag. The per-chunk key is itself an HMAC of the stream key
// under the chunk id, rather than the stream key directly, so deriving
// one chunk's key never exposes the stream key.
func ChunkMAC(id digest.ID, streamKey []byte, chunkID uint64) (hash.Hash, error) {
	factory, err := digest.Factory(id)
	if err != nil {
		return nil, err
	}
	chunkKey := chunkHMACKey(factory, streamKey, chunkID)
	return hmac.New(factory, chunkKey), nil
}

func chunkHMACKey(factory func() hash.Hash, streamKey []byte, chunkID uint64) []byte {
	idBytes := []byte{
		byte(chunkID >> 56), byte(chunkID >> 48), byte(chunkID >> 40), byte(chunkID >> 32),
		byte(chunkID >> 24), byte(chunkID >> 16), byte(chunkID >> 8), byte(chunkID),
	}
	mac := hmac.New(factory, streamKey)
	mac.Write(idBytes)
	return mac.Sum(nil)
}

package cryptobind

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/crypto/salsa20/salsa20"
)

// Algorithm names the two ciphers spec §1/§6 names; encryption mode
// negotiation beyond these is an explicit Non-goal.
type Algorithm int

const (
	AES Algorithm = iota
	XSalsa20
)

// cipherCache avoids recreating an AES block cipher for the same key
// within a stream, the way the teacher's pkg/crypto/crypto.go caches AES
// ciphers keyed by their 16-byte value.
type cipherCache struct {
	mu    sync.Mutex
	block cipher.Block
	key   string
}

var aesCache cipherCache

func aesBlock(key []byte) (cipher.Block, error) {
	aesCache.mu.Lock()
	defer aesCache.mu.Unlock()
	if aesCache.block != nil && aesCache.key == string(key) {
		return aesCache.block, nil
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aesCache.block = block
	aesCache.key = string(key)
	return block, nil
}

// Stream returns a length-preserving keystream cipher for chunk chunkID,
// derived from (streamNonce, chunkID) so chunks remain independently
// decryptable and reorderable (spec §4.2), generalizing the teacher's
// NewCTRStream (which derived its counter from a fixed NSZ section IV).
func Stream(alg Algorithm, key, streamNonce []byte, chunkID uint64) (cipher.Stream, error) {
	switch alg {
	case AES:
		block, err := aesBlock(key)
		if err != nil {
			return nil, err
		}
		counter := make([]byte, aes.BlockSize)
		copy(counter, streamNonce)
		binary.BigEndian.PutUint64(counter[aes.BlockSize-8:], chunkID)
		return cipher.NewCTR(block, counter), nil
	case XSalsa20:
		if len(key) != 32 {
			return nil, fmt.Errorf("cryptobind: xsalsa20 key must be 32 bytes, got %d", len(key))
		}
		if len(streamNonce) != 24 {
			return nil, fmt.Errorf("cryptobind: xsalsa20 nonce must be 24 bytes, got %d", len(streamNonce))
		}
		nonce := make([]byte, 24)
		copy(nonce, streamNonce)
		binary.BigEndian.PutUint64(nonce[16:], chunkID)
		var k [32]byte
		copy(k[:], key)
		return &salsa20Stream{key: k, nonce: nonce}, nil
	default:
		return nil, fmt.Errorf("cryptobind: unknown cipher algorithm %d", alg)
	}
}

// salsa20Stream adapts golang.org/x/crypto/salsa20's one-shot XORKeyStream
// function to the cipher.Stream interface TransformStack expects.
type salsa20Stream struct {
	key   [32]byte
	nonce []byte
}

func (s *salsa20Stream) XORKeyStream(dst, src []byte) {
	salsa20.XORKeyStream(dst, src, s.nonce, &s.key)
}

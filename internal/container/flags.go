package container

// FileHeader flags (u16), per spec §6.
const (
	CksumMask     uint16 = 0x0F00 // covers 0x100..0x900 (incl. legacy SKEIN ids)
	MaskCryptoAlg uint16 = 0x00F0
	CryptoAES     uint16 = 0x0010
	CryptoSalsa20 uint16 = 0x0020
	FlagDedup     uint16 = 0x0001
	FlagDedupFix  uint16 = 0x0002
	FlagSingle    uint16 = 0x0004
	FlagArchive   uint16 = 0x0008
	// FlagGlobalDedup marks FlagDedup/FlagDedupFix as operating over one
	// whole-stream block table instead of an independent table per chunk
	// (spec §4.5 scenario 5), so decode knows to share one dedupe.Global
	// instance across all workers rather than building one per worker.
	FlagGlobalDedup uint16 = 0x1000
)

// Chunk flag byte, per spec §6.
const (
	ChunkCompressed byte = 1 << 0
	ChunkDedup      byte = 1 << 1
	ChunkPreproc    byte = 1 << 2
	// bits 4..5: adaptive sub-algo id (0..3)
	chunkSubAlgoShift = 4
	chunkSubAlgoMask  = 0x3 << chunkSubAlgoShift
	ChunkSizeMask     byte = 1 << 7
)

// SubAlgo extracts the 2-bit adaptive sub-algorithm id from a chunk flag byte.
func SubAlgo(flags byte) uint8 {
	return uint8(flags&chunkSubAlgoMask) >> chunkSubAlgoShift
}

// WithSubAlgo returns flags with the adaptive sub-algorithm id set.
func WithSubAlgo(flags byte, id uint8) byte {
	flags &^= chunkSubAlgoMask
	return flags | (id<<chunkSubAlgoShift)&chunkSubAlgoMask
}

// Preproc type byte values (front of the preprocessing wrapper, spec §4.2).
const (
	PreprocNone   uint8 = 0
	PreprocLZP    uint8 = 1
	PreprocDelta2 uint8 = 2
	PreprocBoth   uint8 = 3
)

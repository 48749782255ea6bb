package codec

// Aliases map the historical pcompress algorithm names onto the concrete
// codecs this repo ships, since no example repo in the pack vendors an
// LZMA/bzip2/PPMd implementation (see DESIGN.md). The CLI's `-c <algo>` and
// the on-wire algo_tag both accept either name.
var aliases = map[string]string{
	"lzma":  "zstd",
	"bzip2": "s2",
	"ppmd":  "lz4",
}

// New constructs a fresh Codec for the given algorithm name.
func New(name string) (Codec, error) {
	if canon, ok := aliases[name]; ok {
		name = canon
	}
	switch name {
	case "store":
		return newStore(), nil
	case "zstd":
		return newZstd(), nil
	case "s2":
		return newS2(), nil
	case "lz4":
		return newLZ4(), nil
	case "adapt":
		return newAdaptive(), nil
	default:
		return nil, &ErrUnknownAlgo{Name: name}
	}
}

// Names returns the canonical algorithm names this registry supports.
func Names() []string {
	return []string{"store", "zstd", "s2", "lz4", "adapt"}
}

// KnownAlgoTags returns the set of 8-byte algo_tag values FrameCodec should
// accept on read, covering every canonical name and alias.
func KnownAlgoTags() map[[8]byte]bool {
	out := make(map[[8]byte]bool)
	for _, n := range Names() {
		out[tag(n)] = true
	}
	for alias := range aliases {
		out[tag(alias)] = true
	}
	return out
}

// NameForTag reverses tag(name) for a canonical algorithm name, so a reader
// that only has a header's on-wire algo_tag can rebuild the matching codec.
func NameForTag(t [8]byte) (string, bool) {
	for _, n := range Names() {
		if tag(n) == t {
			return n, true
		}
	}
	return "", false
}

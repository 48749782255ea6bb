package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/go-pcompress/pcompress/internal/cryptobind"
	"github.com/go-pcompress/pcompress/internal/digest"
)

// DedupMode selects which DedupeEngine (if any) a stream uses.
type DedupMode int

const (
	DedupNone DedupMode = iota
	DedupRabin
	DedupFixed
)

// Options holds one invocation's fully-parsed, validated configuration —
// the CLI surface of spec.md §6.
type Options struct {
	Compress   bool
	Decompress bool
	Algo       string
	ChunkSize  uint64
	Level      int
	Pipe       bool
	Threads    int

	Dedup       DedupMode
	GlobalDedup bool
	DedupBlock  int

	DeltaEncode int
	LZP         bool
	Delta2      bool

	Checksum digest.ID

	CipherAlg     cryptobind.Algorithm
	Encrypt       bool
	PasswordFile  string
	KeyLen        int

	Archive          bool
	NoSort           bool
	ForcePerm        uint32
	NoOverwriteNewer bool

	Verbose     bool
	ShowMemory  bool
	ShowCompressStats bool

	Input  string
	Output string
}

var checksumNames = map[string]digest.ID{
	"crc64":     digest.CRC64,
	"blake256":  digest.BLAKE256,
	"blake512":  digest.BLAKE512,
	"sha256":    digest.SHA256,
	"sha512":    digest.SHA512,
	"keccak256": digest.KECCAK256,
	"keccak512": digest.KECCAK512,
}

// ParseArgs parses argv (excluding argv[0]) per spec.md §6's short-flag
// surface, validating ranges and cross-flag dependencies (`-G` requires
// `-D` or `-F`).
func ParseArgs(argv []string) (*Options, error) {
	fs := pflag.NewFlagSet("pcompress", pflag.ContinueOnError)
	fs.SetOutput(new(strings.Builder)) // suppress pflag's own usage print; caller reports errors

	compressAlgo := fs.StringP("compress", "c", "", "compress with the named algorithm")
	decompress := fs.BoolP("decompress", "d", false, "decompress")
	sizeStr := fs.StringP("size", "s", "4m", "chunk size (k/m/g suffix)")
	level := fs.IntP("level", "l", 6, "compression level (0-14)")
	pipe := fs.BoolP("pipe", "p", false, "pipe mode: read stdin, write stdout")
	threads := fs.IntP("threads", "t", 0, "worker thread count (1-256, 0 = logical CPUs)")
	rabinDedup := fs.BoolP("rabin-dedup", "D", false, "rabin (content-defined) dedup")
	fixedDedup := fs.BoolP("fixed-dedup", "F", false, "fixed-size dedup")
	globalDedup := fs.BoolP("global-dedup", "G", false, "global dedup (requires -D or -F)")
	deltaEncode := fs.CountP("delta-encode", "E", "delta-encode (repeatable for extra mode)")
	lzp := fs.BoolP("lzp", "L", false, "LZP preprocessing")
	delta2 := fs.BoolP("delta2", "P", false, "Delta2 preprocessing")
	checksum := fs.StringP("checksum", "S", "crc64", "chunk digest algorithm")
	dedupBlock := fs.IntP("dedup-block", "B", 2, "dedup block size class (0-5)")
	encAlg := fs.StringP("encrypt", "e", "", "encryption cipher: AES or SALSA20")
	pwFile := fs.StringP("password-file", "w", "", "password file (zeroed after read)")
	keyLen := fs.IntP("keylen", "k", 16, "key length in bytes: 16 or 32")
	archive := fs.BoolP("archive", "a", false, "archive mode: compress a directory tree")
	verbose := fs.BoolP("verbose", "v", false, "verbose logging")
	noSort := fs.BoolP("no-sort", "n", false, "disable archive member sort")
	forcePerm := fs.StringP("force-perm", "m", "", "force extracted file permissions (octal)")
	noOverwriteNewer := fs.BoolP("no-overwrite-newer", "K", false, "skip archive members not newer than existing")
	showMemory := fs.BoolP("show-memory", "M", false, "report memory use")
	showStats := fs.BoolP("show-stats", "C", false, "report compression stats")

	if err := fs.Parse(argv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}

	o := &Options{
		Compress:         *compressAlgo != "",
		Decompress:       *decompress,
		Algo:             *compressAlgo,
		Level:            *level,
		Pipe:             *pipe,
		Threads:          *threads,
		GlobalDedup:      *globalDedup,
		DeltaEncode:      *deltaEncode,
		LZP:              *lzp,
		Delta2:           *delta2,
		DedupBlock:       *dedupBlock,
		Archive:          *archive,
		Verbose:          *verbose,
		NoSort:           *noSort,
		NoOverwriteNewer: *noOverwriteNewer,
		ShowMemory:       *showMemory,
		ShowCompressStats: *showStats,
		PasswordFile:     *pwFile,
		KeyLen:           *keyLen,
	}

	if o.Compress == o.Decompress {
		return nil, fmt.Errorf("%w: exactly one of -c or -d is required", ErrBadArgs)
	}

	size, err := parseSize(*sizeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	o.ChunkSize = size

	if o.Level < 0 || o.Level > 14 {
		return nil, fmt.Errorf("%w: level must be in [0,14]", ErrBadArgs)
	}
	if o.Threads < 0 || o.Threads > 256 {
		return nil, fmt.Errorf("%w: threads must be in [0,256]", ErrBadArgs)
	}
	if o.DedupBlock < 0 || o.DedupBlock > 5 {
		return nil, fmt.Errorf("%w: dedup block class must be in [0,5]", ErrBadArgs)
	}

	switch {
	case *rabinDedup && *fixedDedup:
		return nil, fmt.Errorf("%w: -D and -F are mutually exclusive", ErrBadArgs)
	case *rabinDedup:
		o.Dedup = DedupRabin
	case *fixedDedup:
		o.Dedup = DedupFixed
	}
	if o.GlobalDedup && o.Dedup == DedupNone {
		return nil, fmt.Errorf("%w: -G requires -D or -F", ErrBadArgs)
	}

	id, ok := checksumNames[strings.ToLower(*checksum)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown checksum %q", ErrBadArgs, *checksum)
	}
	o.Checksum = id

	if *encAlg != "" {
		o.Encrypt = true
		switch strings.ToUpper(*encAlg) {
		case "AES":
			o.CipherAlg = cryptobind.AES
		case "SALSA20":
			o.CipherAlg = cryptobind.XSalsa20
		default:
			return nil, fmt.Errorf("%w: unknown cipher %q", ErrBadArgs, *encAlg)
		}
		if o.KeyLen != 16 && o.KeyLen != 32 {
			return nil, fmt.Errorf("%w: key length must be 16 or 32", ErrBadArgs)
		}
		if o.PasswordFile == "" {
			return nil, fmt.Errorf("%w: -e requires -w <password file>", ErrBadArgs)
		}
	}

	if *forcePerm != "" {
		perm, err := strconv.ParseUint(*forcePerm, 8, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid -m permission %q", ErrBadArgs, *forcePerm)
		}
		o.ForcePerm = uint32(perm)
	}

	rest := fs.Args()
	if len(rest) == 0 && !o.Pipe {
		return nil, fmt.Errorf("%w: missing input path", ErrBadArgs)
	}
	if len(rest) > 0 {
		o.Input = rest[0]
	}
	if len(rest) > 1 {
		o.Output = rest[1]
	}

	return o, nil
}

// parseSize parses a chunk size with an optional k/m/g suffix (spec.md §6).
func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}
	mult := uint64(1)
	suffix := s[len(s)-1]
	switch suffix {
	case 'k', 'K':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return n * mult, nil
}

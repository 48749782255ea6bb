package engine

import (
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/go-pcompress/pcompress/internal/codec"
	"github.com/go-pcompress/pcompress/internal/container"
	"github.com/go-pcompress/pcompress/internal/cryptobind"
	"github.com/go-pcompress/pcompress/internal/dedupe"
	"github.com/go-pcompress/pcompress/internal/integrity"
	"github.com/go-pcompress/pcompress/internal/transform"
)

// CacheDirEnv names the environment variable that overrides the scratch
// directory for global-dedup temporary state (spec.md §6 Environment).
const CacheDirEnv = "PCOMPRESS_CACHE_DIR"

// CacheDir returns PCOMPRESS_CACHE_DIR if set, else os.TempDir().
func CacheDir() string {
	if d := os.Getenv(CacheDirEnv); d != "" {
		return d
	}
	return os.TempDir()
}

// Context is the lifecycle owner for one compress/decompress invocation:
// it resolves thread count, derives (or generates) the crypto key once,
// and builds one independent transform.Stack per worker so codec/dedup/
// cipher state never crosses a goroutine boundary (spec.md §4.4).
type Context struct {
	Opts   *Options
	Log    *logrus.Logger
	Header container.Header

	streamKey   []byte
	streamNonce []byte
}

// NewContext resolves N and builds the container header fields for a
// fresh compress stream. For decompress, call NewContextFromHeader instead
// once the file header has been parsed.
func NewContext(o *Options, log *logrus.Logger) (*Context, error) {
	c := &Context{Opts: o, Log: log}
	c.Header = container.Header{
		Version:   container.CurrentVersion,
		ChunkSize: o.ChunkSize,
		Level:     int32(o.Level),
	}
	c.Header.Flags |= uint16(o.Checksum)
	if o.Dedup == DedupRabin {
		c.Header.Flags |= container.FlagDedup
	}
	if o.Dedup == DedupFixed {
		c.Header.Flags |= container.FlagDedupFix
	}
	if o.GlobalDedup {
		c.Header.Flags |= container.FlagGlobalDedup
	}
	if o.Archive {
		c.Header.Flags |= container.FlagArchive
	}

	probe, err := codec.New(o.Algo)
	if err != nil {
		return nil, err
	}
	c.Header.AlgoTag = probe.Props().AlgoTag

	if o.Encrypt {
		switch o.CipherAlg {
		case cryptobind.AES:
			c.Header.Flags |= container.CryptoAES
		case cryptobind.XSalsa20:
			c.Header.Flags |= container.CryptoSalsa20
		}
		c.Header.KeyLen = uint32(o.KeyLen)

		password, err := cryptobind.ReadPasswordFile(o.PasswordFile)
		if err != nil {
			return nil, fmt.Errorf("engine: reading password file: %w", err)
		}
		defer cryptobind.Zero(password)

		saltLen := 16
		salt, err := cryptobind.NewSalt(saltLen)
		if err != nil {
			return nil, err
		}
		c.Header.Salt = salt

		nonceLen := 8
		if o.CipherAlg == cryptobind.XSalsa20 {
			nonceLen = 24
		}
		nonce, err := cryptobind.NewSalt(nonceLen)
		if err != nil {
			return nil, err
		}
		c.Header.Nonce = nonce

		key, err := cryptobind.DeriveKey(password, salt, o.KeyLen, o.Checksum)
		if err != nil {
			return nil, err
		}
		c.streamKey = key
		c.streamNonce = nonce
	}

	log.WithFields(logrus.Fields{
		"algo":      o.Algo,
		"chunksize": o.ChunkSize,
		"threads":   c.ThreadCount(),
		"crypto":    o.Encrypt,
	}).Debug("stream context initialized")

	return c, nil
}

// ThreadCount resolves N = min(requested_threads, logical_cpus), per
// spec.md §5, defaulting requested_threads to logical_cpus when the CLI
// didn't ask for a specific count.
func (c *Context) ThreadCount() int {
	n := c.Opts.Threads
	cpus := runtime.NumCPU()
	if n <= 0 || n > cpus {
		return cpus
	}
	return n
}

// NewStacks builds one transform.Stack per worker thread, each with its
// own Codec and DedupeEngine instance (spec.md §4.4: per-worker state).
func (c *Context) NewStacks(n int) ([]*transform.Stack, error) {
	// Global dedup shares ONE engine instance, carrying one block table
	// across the whole stream, across every worker (spec §4.5 scenario 5).
	// Per-chunk dedup instead gives each worker its own independent table,
	// since chunks never need to reference each other's blocks.
	var sharedEngine dedupe.Engine
	if c.Opts.GlobalDedup {
		switch c.Opts.Dedup {
		case DedupRabin:
			sharedEngine = dedupe.NewGlobalRabin(c.Opts.DedupBlock)
		case DedupFixed:
			sharedEngine = dedupe.NewGlobalFixed(c.Opts.DedupBlock)
		}
	}

	stacks := make([]*transform.Stack, n)
	for i := 0; i < n; i++ {
		cd, err := codec.New(c.Opts.Algo)
		if err != nil {
			return nil, err
		}
		if err := cd.Init(c.Opts.Level); err != nil {
			return nil, err
		}

		engine := sharedEngine
		if engine == nil {
			switch c.Opts.Dedup {
			case DedupRabin:
				engine = dedupe.NewRabin(c.Opts.DedupBlock)
			case DedupFixed:
				engine = dedupe.NewFixed(c.Opts.DedupBlock)
			}
		}

		opts := transform.Options{
			Dedup:      engine,
			Codec:      cd,
			LZP:        c.Opts.LZP,
			ChecksumID: c.Opts.Checksum,
			Crypto:     c.Opts.Encrypt,
			CipherAlg:  c.Opts.CipherAlg,
			StreamKey:  c.streamKey,
			StreamNonce: c.streamNonce,
			MAC: integrity.Policy{
				Crypto:     c.Opts.Encrypt,
				ChecksumID: c.Opts.Checksum,
				StreamKey:  c.streamKey,
			},
		}
		if c.Opts.Delta2 || c.Opts.DeltaEncode > 0 {
			span := 1
			if c.Opts.DeltaEncode > 0 {
				span = 1 << uint(c.Opts.DeltaEncode)
			}
			opts.Delta2Span = span
		}
		stacks[i] = transform.New(opts)
	}
	return stacks, nil
}

// NewContextFromHeader builds a decompress-side Context once the file
// header has been parsed and (if it carries a crypto suffix) its key
// derived. password may be nil for a non-crypto stream.
func NewContextFromHeader(o *Options, log *logrus.Logger, h container.Header, password []byte) (*Context, error) {
	c := &Context{Opts: o, Log: log, Header: h}

	if name, ok := codec.NameForTag(h.AlgoTag); ok {
		o.Algo = name
	}
	o.Checksum = h.CksumID()
	switch {
	case h.Flags&container.FlagDedup != 0:
		o.Dedup = DedupRabin
	case h.Flags&container.FlagDedupFix != 0:
		o.Dedup = DedupFixed
	default:
		o.Dedup = DedupNone
	}
	o.GlobalDedup = h.Flags&container.FlagGlobalDedup != 0
	if h.Flags&container.MaskCryptoAlg != 0 {
		o.Encrypt = true
		switch {
		case h.Flags&container.CryptoAES != 0:
			o.CipherAlg = cryptobind.AES
		case h.Flags&container.CryptoSalsa20 != 0:
			o.CipherAlg = cryptobind.XSalsa20
		}
		if password == nil {
			return nil, fmt.Errorf("%w: stream is encrypted but no password file was given", ErrBadArgs)
		}
		key, err := cryptobind.DeriveKey(password, h.Salt, int(h.KeyLen), o.Checksum)
		if err != nil {
			return nil, err
		}
		c.streamKey = key
		c.streamNonce = h.Nonce
	}

	log.WithFields(logrus.Fields{
		"chunksize": h.ChunkSize,
		"threads":   c.ThreadCount(),
		"crypto":    o.Encrypt,
	}).Debug("decompress context initialized from header")

	return c, nil
}

// KeyDeriver returns the container.KeyDeriver closure container.Read's
// header verification needs to check a crypto header's HMAC, bound to the
// supplied password.
func (c *Context) KeyDeriver(password []byte) container.KeyDeriver {
	return cryptobind.KeyDeriverFor(password)
}

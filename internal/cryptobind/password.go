// Package cryptobind implements key derivation, nonce handling, per-chunk
// HMAC keying, and the documented contract to zero secret memory once it
// has been consumed (spec §3 Lifecycle, §9 Design Notes).
package cryptobind

import (
	"bufio"
	"bytes"
	"os"
	"runtime"
)

// ReadPasswordFile reads a single password from path (its first line,
// trailing newline stripped) and zeroes the file's in-memory buffer
// immediately after extracting the password, mirroring the teacher's
// pkg/keys/keys.go read-then-store pattern but narrowed to a single secret
// that is zeroed rather than cached.
func ReadPasswordFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(bufio.NewReader(f)); err != nil {
		return nil, err
	}
	raw := buf.Bytes()
	defer Zero(raw)

	line := raw
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		line = raw[:idx]
	}
	line = bytes.TrimRight(line, "\r")

	pw := make([]byte, len(line))
	copy(pw, line)
	return pw, nil
}

// Zero overwrites b with zeros. It's written so the compiler cannot prove
// the write is dead and elide it (spec §9: "implementations must ensure
// compiler does not elide the zero write").
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

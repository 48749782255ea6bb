package engine

import "errors"

// Error kinds per spec.md §7. Each maps to a stable CLI exit behavior;
// see ExitCode below, which cmd/pcompress uses as its exit status.
var (
	ErrFormatMismatch     = errors.New("engine: unknown algorithm tag")
	ErrUnsupportedVersion = errors.New("engine: unsupported container version")
	ErrTampered           = errors.New("engine: header integrity check failed")
	ErrAuthFailed         = errors.New("engine: per-chunk authentication failed")
	ErrDigestMismatch     = errors.New("engine: recomputed chunk digest does not match stored digest")
	ErrOversizeChunk      = errors.New("engine: chunk size exceeds host memory bound")
	ErrBadArgs            = errors.New("engine: invalid command-line arguments")
)

// ExitCode maps a returned error to the process exit status spec.md §6
// specifies: 0 success, 1 general failure, 2 bad args.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrBadArgs):
		return 2
	default:
		return 1
	}
}

// Package fswalk is the concrete directory-tree Archiver backing the
// `-a` CLI flag, adapted from the teacher's PFS0 container reader/writer
// (pkg/fs/pfs0.go, pkg/fs/pfs0_writer.go): the same "header + entries +
// payload" shape, generalized from a fixed binary table to the
// length-prefixed streaming sequence internal/archiver defines, since an
// archive's member count isn't known before the source tree is walked.
package fswalk

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-pcompress/pcompress/internal/archiver"
)

// Writer walks Root and yields its regular files as archiver.Members, in
// lexical order unless Sort is false (`-n` disables sort).
type Writer struct {
	Root string
	Sort bool

	// ExistingDir, when non-empty, is a previously-extracted copy of this
	// archive. If NoOverwriteNewer is set, a source file is skipped when
	// ExistingDir holds a same-named file whose mtime is >= the source's
	// (`-K`: don't re-archive a member that isn't newer than what's there).
	ExistingDir      string
	NoOverwriteNewer bool
}

// Members implements archiver.Source.
func (w *Writer) Members() ([]archiver.Member, error) {
	var out []archiver.Member
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		if w.skip(rel, info) {
			return nil
		}

		p := path
		out = append(out, archiver.Member{
			Name: rel,
			Size: info.Size(),
			Mode: info.Mode().Perm(),
			Open: func() (io.ReadCloser, error) { return os.Open(p) },
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if w.Sort {
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}
	return out, nil
}

func (w *Writer) skip(rel string, info os.FileInfo) bool {
	if !w.NoOverwriteNewer || w.ExistingDir == "" {
		return false
	}
	existing, err := os.Stat(filepath.Join(w.ExistingDir, filepath.FromSlash(rel)))
	if err != nil {
		return false
	}
	return !existing.ModTime().Before(info.ModTime())
}

// Extractor is the Sink that materializes an archive stream back onto
// disk under Root. ForcePerm, when non-zero, overrides every member's
// stored mode bits (`-m`).
type Extractor struct {
	Root      string
	ForcePerm os.FileMode
}

// CreateMember implements archiver.Sink.
func (e *Extractor) CreateMember(name string, size int64, mode os.FileMode) (io.WriteCloser, error) {
	path := filepath.Join(e.Root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	perm := mode
	if e.ForcePerm != 0 {
		perm = e.ForcePerm
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
}

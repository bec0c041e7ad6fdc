package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/redact-edge/internal/domain"
)

// Chain tracks the artifacts produced for one source document. Element 0 is
// the source; the last element is the current tail.
type Chain struct {
	source  string
	workDir string
	stem    string
	hash    string
	paths   []string
}

// NewChain starts a chain at source. Intermediate artifacts go to workDir.
func NewChain(source, workDir string) (*Chain, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return nil, domain.IOError("cannot resolve "+source, err)
	}
	sum := sha256.Sum256([]byte(abs))
	base := filepath.Base(source)
	return &Chain{
		source:  source,
		workDir: workDir,
		stem:    strings.TrimSuffix(base, filepath.Ext(base)),
		hash:    hex.EncodeToString(sum[:])[:8],
		paths:   []string{source},
	}, nil
}

// Source returns chain element 0.
func (c *Chain) Source() string { return c.source }

// Tail returns the newest artifact.
func (c *Chain) Tail() string { return c.paths[len(c.paths)-1] }

// Len returns the number of chain members including the source.
func (c *Chain) Len() int { return len(c.paths) }

// Paths returns a copy of the chain.
func (c *Chain) Paths() []string { return append([]string(nil), c.paths...) }

// NextPath names the artifact that step would write:
// <workdir>/<stem>-<hash8>.<nn>-<suffix>.pdf.
func (c *Chain) NextPath(kind domain.OperationKind) string {
	name := fmt.Sprintf("%s-%s.%02d-%s.pdf", c.stem, c.hash, len(c.paths), kind.Suffix())
	return filepath.Join(c.workDir, name)
}

// Advance makes path the new tail.
func (c *Chain) Advance(path string) {
	c.paths = append(c.paths, path)
}

// OutputPath returns <outputDir>/<stem>_modified<ext>.
func OutputPath(source, outputDir string) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	return filepath.Join(outputDir, strings.TrimSuffix(base, ext)+"_modified"+ext)
}

// Promote moves the tail to dst. A tail that is still the source is copied
// so the source stays in place.
func (c *Chain) Promote(dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return domain.IOError("cannot create output directory", err)
	}
	tail := c.Tail()
	if tail == c.source {
		return copyFile(tail, dst)
	}
	if err := os.Rename(tail, dst); err == nil {
		return nil
	}
	// rename fails across devices
	if err := copyFile(tail, dst); err != nil {
		return err
	}
	if err := os.Remove(tail); err != nil && !os.IsNotExist(err) {
		return domain.IOError("cannot remove promoted artifact", err)
	}
	return nil
}

// Cleanup removes every chain member except the source. Members already gone
// are ignored. It returns the number of files removed.
func (c *Chain) Cleanup() (int, error) {
	removed := 0
	var firstErr error
	for _, p := range c.paths[1:] {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case os.IsNotExist(err):
		case firstErr == nil:
			firstErr = domain.IOError("cannot remove intermediate "+filepath.Base(p), err)
		}
	}
	return removed, firstErr
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return domain.IOError("cannot open "+src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return domain.IOError("cannot create "+dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return domain.IOError("cannot copy to "+dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return domain.IOError("cannot write "+dst, err)
	}
	return nil
}

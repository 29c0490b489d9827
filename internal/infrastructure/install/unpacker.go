package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
)

// Unpacker implements ports.Unpacker over mholt/archives, which
// auto-detects the archive format (tar.gz, zip, etc.) rather than
// requiring the caller to know it ahead of time — prebuilt artifacts
// vary format by platform and plugin (spec.md §4.5 step "unpack_archive").
type Unpacker struct{}

// NewUnpacker constructs an Unpacker.
func NewUnpacker() *Unpacker { return &Unpacker{} }

// Unpack extracts archivePath into destDir, stripping prefixStrip (the
// plugin-declared archive-internal path prefix, e.g. a top-level
// `tool-v1.2.3/` directory) from each entry's name before writing it.
func (u *Unpacker) Unpack(ctx context.Context, archivePath, destDir, prefixStrip string) error {
	f, err := os.Open(archivePath) //nolint:gosec // G304: archivePath is the store's own downloaded temp file
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer func() { _ = f.Close() }()

	format, stream, err := archives.Identify(ctx, archivePath, f)
	if err != nil {
		return fmt.Errorf("identifying archive format for %s: %w", archivePath, err)
	}

	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("%s: format %s does not support extraction", archivePath, format.Extension())
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", destDir, err)
	}

	prefixStrip = strings.Trim(prefixStrip, "/")

	return extractor.Extract(ctx, stream, func(ctx context.Context, entry archives.FileInfo) error {
		name := strings.TrimPrefix(entry.NameInArchive, prefixStrip)
		name = strings.TrimPrefix(name, "/")
		if name == "" {
			return nil
		}

		target := filepath.Join(destDir, filepath.FromSlash(name))
		if !isWithinDir(destDir, target) {
			return fmt.Errorf("archive entry %q escapes destination directory", entry.NameInArchive)
		}

		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("creating parent dir for %s: %w", target, err)
		}

		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("opening archive entry %s: %w", entry.NameInArchive, err)
		}
		defer func() { _ = src.Close() }()

		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, entry.Mode().Perm()|0o200) //nolint:gosec // G302: target is under destDir, validated above
		if err != nil {
			return fmt.Errorf("creating %s: %w", target, err)
		}
		defer func() { _ = out.Close() }()

		if _, err := io.Copy(out, src); err != nil { //nolint:gosec // G110: archive size is bounded by the declared download, not attacker-controlled amplification
			return fmt.Errorf("writing %s: %w", target, err)
		}
		return nil
	})
}

// isWithinDir reports whether target, once cleaned, stays within root —
// guarding against a malicious archive entry using ".." to write outside
// the intended install directory (a zip-slip).
func isWithinDir(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

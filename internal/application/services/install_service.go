package services

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	digest "github.com/opencontainers/go-digest"

	apperrors "github.com/polytool-dev/polytool/internal/application/errors"
	"github.com/polytool-dev/polytool/internal/application/dto"
	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
	"github.com/polytool-dev/polytool/wireformat"
)

// InstallService runs the per-install algorithm of spec.md §4.5: resolve,
// consult the lockfile, skip if already installed, otherwise drive the
// plugin through native_install or the prebuilt download/verify/unpack
// path, then materialize shims and update the lockfile.
type InstallService struct {
	resolve    *ResolveService
	lockfiles  ports.LockfileRepository
	inventory  ports.Inventory
	downloader ports.Downloader
	unpacker   ports.Unpacker
	verifier   ports.ChecksumVerifier
	clock      ports.Clock
}

// NewInstallService wires the install pipeline against its ports.
func NewInstallService(
	resolve *ResolveService,
	lockfiles ports.LockfileRepository,
	inventory ports.Inventory,
	downloader ports.Downloader,
	unpacker ports.Unpacker,
	verifier ports.ChecksumVerifier,
	clock ports.Clock,
) *InstallService {
	return &InstallService{
		resolve:    resolve,
		lockfiles:  lockfiles,
		inventory:  inventory,
		downloader: downloader,
		unpacker:   unpacker,
		verifier:   verifier,
		clock:      clock,
	}
}

// InstallOne runs the per-install algorithm for a single tool context.
// loadPlugin supplies the already-compiled plugin for req's tool
// (container wiring already ran the loader per spec.md §4.2).
func (s *InstallService) InstallOne(ctx context.Context, req values.ToolContext, spec values.UnresolvedSpec, cwd string, force bool, loadPlugin func(context.Context) (ports.Plugin, error)) (dto.InstallOutcome, error) {
	outcome := dto.InstallOutcome{Context: req}

	plugin, err := loadPlugin(ctx)
	if err != nil {
		outcome.Error = err
		return outcome, nil
	}

	loadOutput, err := s.resolve.loadVersions(ctx, plugin)
	if err != nil {
		outcome.Error = err
		return outcome, nil
	}

	resolved, err := s.resolve.resolver.Resolve(spec, loadOutput, nil)
	if err != nil {
		outcome.Error = fmt.Errorf("resolving %s: %w", req.Id, err)
		return outcome, nil
	}
	outcome.Resolved = resolved

	lock, err := s.lockfiles.Load(ctx, cwd)
	if err != nil {
		outcome.Error = fmt.Errorf("loading lockfile: %w", err)
		return outcome, nil
	}
	if lock == nil {
		lock = entities.NewLockfile()
	}

	version := resolved.Format()

	manifest, err := s.inventory.LoadManifest(ctx, req.Id)
	if err != nil {
		outcome.Error = fmt.Errorf("loading manifest for %s: %w", req.Id, err)
		return outcome, nil
	}
	if manifest == nil {
		manifest = entities.NewToolManifest(req.Id)
	}

	if !force && manifest.IsInstalled(resolved) {
		if err := manifest.Touch(resolved, s.clock.NowMillis()); err != nil {
			outcome.Error = fmt.Errorf("touching manifest for %s: %w", req.Id, err)
			return outcome, nil
		}
		if err := s.inventory.SaveManifest(ctx, manifest); err != nil {
			outcome.Error = fmt.Errorf("touching manifest for %s: %w", req.Id, err)
			return outcome, nil
		}
		outcome.Skipped = true
		return outcome, nil
	}

	rec, existing := lock.Find(req.Id, req.Backend, spec)
	installSource, err := s.installFromPlugin(ctx, plugin, req, version)
	if err != nil {
		outcome.Error = err
		return outcome, nil
	}

	checksum, source, err := s.verifyAgainstLock(ctx, req, version, installSource, existing, rec)
	if err != nil {
		outcome.Error = err
		return outcome, nil
	}

	locateRaw, err := plugin.Call(ctx, "locate_executables", struct{}{})
	if err != nil {
		outcome.Error = fmt.Errorf("calling locate_executables on %s: %w", req.Id, err)
		return outcome, nil
	}
	var located wireformat.LocateExecutablesOutputWire
	if err := json.Unmarshal(locateRaw, &located); err != nil {
		outcome.Error = fmt.Errorf("parsing locate_executables output for %s: %w", req.Id, err)
		return outcome, nil
	}

	executables := append([]string{located.Primary}, located.Globals...)
	if err := s.inventory.EnsureShims(ctx, req.Id, version, executables); err != nil {
		outcome.Error = fmt.Errorf("materializing shims for %s: %w", req.Id, err)
		return outcome, nil
	}

	now := s.clock.NowMillis()
	lockedRecord := &entities.LockRecord{
		Backend:  req.Backend,
		Spec:     &spec,
		Version:  &resolved,
		Source:   source,
		Checksum: entities.Checksum(checksum),
	}
	manifest.RecordInstall(resolved, now, lockedRecord)
	if err := s.inventory.SaveManifest(ctx, manifest); err != nil {
		outcome.Error = fmt.Errorf("saving manifest for %s: %w", req.Id, err)
		return outcome, nil
	}

	lock.Upsert(req.Id, *lockedRecord)
	if err := s.lockfiles.Save(ctx, cwd, lock); err != nil {
		outcome.Error = fmt.Errorf("saving lockfile: %w", err)
		return outcome, nil
	}

	return outcome, nil
}

// installFromPlugin tries native_install first; absent that, it runs the
// prebuilt download/verify/unpack path (spec.md §4.5 steps 4-5). It
// returns the artifact source recorded in the lockfile: the plugin's own
// identity for a native install (there is no download URL to record),
// otherwise the prebuilt archive's download URL.
func (s *InstallService) installFromPlugin(ctx context.Context, plugin ports.Plugin, req values.ToolContext, version string) (source string, err error) {
	if _, err := plugin.Call(ctx, "native_install", struct {
		Version string `json:"version"`
	}{Version: version}); err == nil {
		return "native:" + string(req.Id), nil
	}

	raw, err := plugin.Call(ctx, "download_prebuilt", wireformat.ResolveVersionInputWire{Spec: version})
	if err != nil {
		return "", fmt.Errorf("calling download_prebuilt on %s: %w", req.Id, err)
	}
	var prebuilt wireformat.DownloadPrebuiltOutputWire
	if err := json.Unmarshal(raw, &prebuilt); err != nil {
		return "", fmt.Errorf("parsing download_prebuilt output for %s: %w", req.Id, err)
	}

	tempDir := filepath.Join(s.inventory.StoreRoot(), "temp", string(req.Id), version)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("creating temp dir for %s: %w", req.Id, err)
	}

	archivePath := filepath.Join(tempDir, "archive")
	if err := s.downloader.Download(ctx, prebuilt.DownloadURL, archivePath); err != nil {
		return "", fmt.Errorf("downloading %s: %w", req.Id, err)
	}

	if prebuilt.ChecksumURL != "" {
		checksumPath := filepath.Join(tempDir, "checksum")
		if err := s.downloader.Download(ctx, prebuilt.ChecksumURL, checksumPath); err != nil {
			return "", fmt.Errorf("downloading checksum for %s: %w", req.Id, err)
		}
		data, err := os.ReadFile(checksumPath) //nolint:gosec // G304: path built from the store's own temp dir
		if err != nil {
			return "", fmt.Errorf("reading checksum file for %s: %w", req.Id, err)
		}
		if err := s.verifier.VerifySHA256(ctx, archivePath, string(data)); err != nil {
			return "", fmt.Errorf("verifying checksum for %s: %w", req.Id, err)
		}
	}

	destDir := s.inventory.ToolDir(req.Id, version)
	if err := s.unpacker.Unpack(ctx, archivePath, destDir, prebuilt.ArchivePrefix); err != nil {
		return "", fmt.Errorf("unpacking %s: %w", req.Id, err)
	}

	return prebuilt.DownloadURL, nil
}

// verifyAgainstLock applies spec.md §4.6's verification rule: matching
// checksums are required when a prior record exists; matching source
// URLs with no checksum on either side is fatal, different sources are
// allowed (a different install strategy, not a conflict). installSource
// is the artifact source this run just installed from
// (installFromPlugin's return value); it becomes the new lock entry's
// Source on a clean install.
func (s *InstallService) verifyAgainstLock(ctx context.Context, req values.ToolContext, version, installSource string, existing bool, rec entities.LockRecord) (checksum, source string, err error) {
	destDir := s.inventory.ToolDir(req.Id, version)
	computed, err := s.checksumDir(ctx, destDir)
	if err != nil {
		return "", "", fmt.Errorf("computing checksum for %s: %w", req.Id, err)
	}

	if !existing {
		return computed, installSource, nil
	}

	recorded := string(rec.Checksum)
	if recorded != "" {
		if recorded != computed {
			return "", "", apperrors.NewLockError(string(req.Id), version, recorded, computed, installSource)
		}
		return computed, rec.Source, nil
	}

	if rec.Source == installSource {
		return "", "", apperrors.NewLockError(string(req.Id), version, "", computed, installSource)
	}
	return computed, installSource, nil
}

// checksumDir computes a content digest of dir's entire file tree: every
// regular file's path relative to dir, plus its content, folded into one
// SHA-256 in sorted-path order so the result is stable across runs that
// don't change what's on disk. This is what verifyAgainstLock compares
// against a recorded lock entry to detect a changed artifact (spec.md
// §4.6, §8 invariant 7) — not a stand-in path string.
func (s *InstallService) checksumDir(ctx context.Context, dir string) (string, error) {
	var paths []string
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		paths = append(paths, rel)
		return nil
	}); err != nil {
		return "", fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, rel := range paths {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		full := filepath.Join(dir, rel)
		f, err := os.Open(full) //nolint:gosec // G304: path built from the store's own tool dir
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", full, err)
		}
		fmt.Fprintf(h, "%s\x00", filepath.ToSlash(rel))
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", full, err)
		}
	}

	return digest.NewDigestFromBytes(digest.SHA256, h.Sum(nil)).String(), nil
}

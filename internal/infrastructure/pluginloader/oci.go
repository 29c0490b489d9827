package pluginloader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"

	apperrors "github.com/polytool-dev/polytool/internal/application/errors"
	"github.com/polytool-dev/polytool/internal/domain/entities"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// mediaTypePriority orders the layer media types the loader prefers
// when an OCI manifest carries more than one candidate layer (spec.md
// §4.2: "select a layer by media type preference: bytecode → toml →
// yaml → json").
var mediaTypePriority = []string{
	"application/wasm",
	"application/toml",
	"application/yaml",
	"application/json",
}

// loadOCIImage resolves an OciImage locator by pulling its manifest and
// the highest-priority layer it declares.
func (l *Loader) loadOCIImage(ctx context.Context, id values.Id, locator entities.PluginLocator) ([]byte, error) {
	ref := ociReference(locator)
	cachePath := l.cachePath(id, ref, "", !locator.IsLatest())

	if l.offline {
		if data, ok := l.readCache(cachePath); ok {
			return data, nil
		}
		return nil, apperrors.NewOfflineError("pull OCI image " + ref)
	}

	if !locator.IsLatest() {
		if data, ok := l.readCache(cachePath); ok {
			return data, nil
		}
	}

	data, err := l.pullOCIManifestLayer(ctx, ref)
	if err != nil {
		if data, ok := l.readCache(cachePath); ok {
			return data, nil
		}
		return nil, err
	}

	if err := l.writeCache(cachePath, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (l *Loader) pullOCIManifestLayer(ctx context.Context, ref string) ([]byte, error) {
	repo, err := remote.NewRepository(ref)
	if err != nil {
		return nil, fmt.Errorf("parsing OCI reference %q: %w", ref, err)
	}
	repo.Client = &auth.Client{Cache: auth.NewCache()}

	tag := repo.Reference.Reference
	if tag == "" {
		tag = "latest"
	}

	manifestDesc, err := repo.Resolve(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", ref, err)
	}

	manifestRC, err := repo.Fetch(ctx, manifestDesc)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest for %s: %w", ref, err)
	}
	defer func() { _ = manifestRC.Close() }()

	manifestBytes, err := io.ReadAll(manifestRC)
	if err != nil {
		return nil, fmt.Errorf("reading manifest for %s: %w", ref, err)
	}

	var manifest ocispec.Manifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest for %s: %w", ref, err)
	}

	layer := pickLayer(manifest.Layers)
	if layer == nil {
		return nil, fmt.Errorf("no recognized layer media type found in %s", ref)
	}

	layerRC, err := repo.Fetch(ctx, *layer)
	if err != nil {
		return nil, fmt.Errorf("fetching layer for %s: %w", ref, err)
	}
	defer func() { _ = layerRC.Close() }()

	data, err := io.ReadAll(layerRC)
	if err != nil {
		return nil, fmt.Errorf("reading layer for %s: %w", ref, err)
	}
	return data, nil
}

func pickLayer(layers []ocispec.Descriptor) *ocispec.Descriptor {
	for _, mediaType := range mediaTypePriority {
		for i := range layers {
			if layers[i].MediaType == mediaType {
				return &layers[i]
			}
		}
	}
	return nil
}

func ociReference(locator entities.PluginLocator) string {
	ref := locator.Image
	if locator.Namespace != "" {
		ref = locator.Namespace + "/" + ref
	}
	if locator.Registry != "" {
		ref = locator.Registry + "/" + ref
	}
	if locator.ImageTag != "" {
		ref += ":" + locator.ImageTag
	}
	return ref
}

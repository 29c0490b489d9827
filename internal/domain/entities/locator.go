// Package entities contains domain entities and aggregate-like value
// objects for the tool-management domain: plugin locators, lockfiles,
// and tool manifests. These are pure domain types with NO infrastructure
// dependencies.
package entities

import (
	"fmt"
	"strings"
)

// LocatorKind discriminates the variants of a PluginLocator.
type LocatorKind string

const (
	LocatorFile          LocatorKind = "file"
	LocatorURL           LocatorKind = "url"
	LocatorGitHubRelease LocatorKind = "github-release"
	LocatorOCIImage      LocatorKind = "oci-image"
)

// PluginLocator is a sum type describing where a plugin artifact comes
// from. Only the fields relevant to Kind are populated.
type PluginLocator struct {
	Kind LocatorKind

	// File
	Path string

	// Url
	URL string

	// GitHubRelease
	Repo        string
	Tag         string
	AssetPrefix string

	// OciImage
	Registry  string
	Namespace string
	Image     string
	ImageTag  string
}

// NewFileLocator builds a File locator.
func NewFileLocator(path string) PluginLocator {
	return PluginLocator{Kind: LocatorFile, Path: path}
}

// NewURLLocator builds a Url locator.
func NewURLLocator(url string) PluginLocator {
	return PluginLocator{Kind: LocatorURL, URL: url}
}

// NewGitHubReleaseLocator builds a GitHubRelease locator. tag and
// assetPrefix may be empty, meaning "resolve latest" and "derive from id"
// respectively.
func NewGitHubReleaseLocator(repo, tag, assetPrefix string) PluginLocator {
	return PluginLocator{Kind: LocatorGitHubRelease, Repo: repo, Tag: tag, AssetPrefix: assetPrefix}
}

// NewOCIImageLocator builds an OciImage locator.
func NewOCIImageLocator(registry, namespace, image, tag string) PluginLocator {
	return PluginLocator{Kind: LocatorOCIImage, Registry: registry, Namespace: namespace, Image: image, ImageTag: tag}
}

// IsLatest reports whether this locator is not pinned to an immutable
// reference, meaning the loader cache must revalidate it on each load
// (spec data model: plugin locator "is_latest()").
func (l PluginLocator) IsLatest() bool {
	switch l.Kind {
	case LocatorFile:
		return false
	case LocatorURL:
		return false
	case LocatorGitHubRelease:
		return l.Tag == "" || l.Tag == "latest"
	case LocatorOCIImage:
		return l.ImageTag == "" || l.ImageTag == "latest"
	default:
		return false
	}
}

// String renders a locator to its `.prototools`-style plugin value, the
// inverse of ParsePluginLocator.
func (l PluginLocator) String() string {
	switch l.Kind {
	case LocatorFile:
		return "file://" + l.Path
	case LocatorURL:
		return l.URL
	case LocatorGitHubRelease:
		s := "github://" + l.Repo
		if l.Tag != "" {
			s += "@" + l.Tag
		}
		if l.AssetPrefix != "" {
			s += "#" + l.AssetPrefix
		}
		return s
	case LocatorOCIImage:
		ref := l.Image
		if l.Namespace != "" {
			ref = l.Namespace + "/" + ref
		}
		if l.Registry != "" {
			ref = l.Registry + "/" + ref
		}
		if l.ImageTag != "" {
			ref += ":" + l.ImageTag
		}
		return "oci://" + ref
	default:
		return ""
	}
}

// ParsePluginLocator parses a `.prototools` plugin value (`file://...`,
// a bare URL, `github://owner/repo@tag#prefix`, or `oci://registry/ns/
// image:tag`) into a PluginLocator, the inverse of String.
func ParsePluginLocator(raw string) (PluginLocator, error) {
	switch {
	case strings.HasPrefix(raw, "file://"):
		return NewFileLocator(strings.TrimPrefix(raw, "file://")), nil
	case strings.HasPrefix(raw, "github://"):
		rest := strings.TrimPrefix(raw, "github://")
		repo := rest
		tag, prefix := "", ""
		if idx := strings.IndexByte(rest, '#'); idx >= 0 {
			repo, prefix = rest[:idx], rest[idx+1:]
		}
		if idx := strings.IndexByte(repo, '@'); idx >= 0 {
			repo, tag = repo[:idx], repo[idx+1:]
		}
		if repo == "" {
			return PluginLocator{}, fmt.Errorf("github locator %q has no repo", raw)
		}
		return NewGitHubReleaseLocator(repo, tag, prefix), nil
	case strings.HasPrefix(raw, "oci://"):
		rest := strings.TrimPrefix(raw, "oci://")
		ref, tag := rest, ""
		if idx := strings.LastIndexByte(rest, ':'); idx >= 0 {
			ref, tag = rest[:idx], rest[idx+1:]
		}
		parts := strings.Split(ref, "/")
		if len(parts) == 0 || ref == "" {
			return PluginLocator{}, fmt.Errorf("oci locator %q has no image", raw)
		}
		image := parts[len(parts)-1]
		registry, namespace := "", ""
		switch len(parts) {
		case 1:
		case 2:
			namespace = parts[0]
		default:
			registry = parts[0]
			namespace = strings.Join(parts[1:len(parts)-1], "/")
		}
		return NewOCIImageLocator(registry, namespace, image, tag), nil
	case strings.Contains(raw, "://"):
		return NewURLLocator(raw), nil
	default:
		return PluginLocator{}, fmt.Errorf("unrecognized plugin locator %q", raw)
	}
}

// CacheExtension chooses the file extension used for the loader's
// content-hash cache path. ext is the media type or file extension
// declared by the resolved artifact, never guessed from content.
func CacheExtension(declared string) (string, error) {
	switch declared {
	case "", "unknown":
		return "", fmt.Errorf("cannot derive cache extension: artifact declared no media type or extension")
	default:
		return declared, nil
	}
}

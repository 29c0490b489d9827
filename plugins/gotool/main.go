// Package main is the gotool plugin: a tool plugin for the Go toolchain
// itself, demonstrating the polyplugin SDK's dispatch helpers against a
// real-ish backend (prebuilt tarballs from a fixed archive naming
// convention, no native install support).
//
// Compiled with: GOOS=wasip1 GOARCH=wasm go build -o gotool.wasm .
package main

import (
	"fmt"
	"strings"

	"github.com/polytool-dev/polytool/sdk/go/polyplugin"
	"github.com/polytool-dev/polytool/wireformat"
)

type goPlugin struct{}

func (goPlugin) RegisterTool() (wireformat.RegisterToolOutputWire, error) {
	return wireformat.RegisterToolOutputWire{
		Name:          "go",
		PluginKind:    "language-runtime",
		PluginVersion: "1.0.0",
		ConfigSchemaHints: map[string]string{
			"goos":   "override GOOS for the downloaded archive",
			"goarch": "override GOARCH for the downloaded archive",
		},
	}, nil
}

func (goPlugin) LoadVersions() (wireformat.LoadVersionsOutputWire, error) {
	resp, err := polyplugin.SendRequest(wireformat.HTTPRequestWire{
		URL:    "https://go.dev/dl/?mode=json&include=all",
		Method: "GET",
	})
	if err != nil {
		return wireformat.LoadVersionsOutputWire{}, fmt.Errorf("fetching go release index: %w", err)
	}
	if resp.StatusCode != 200 {
		return wireformat.LoadVersionsOutputWire{}, fmt.Errorf("go release index returned status %d", resp.StatusCode)
	}

	versions := parseReleaseVersions(resp.Body)
	if len(versions) == 0 {
		return wireformat.LoadVersionsOutputWire{}, fmt.Errorf("no go versions found in release index")
	}
	return wireformat.LoadVersionsOutputWire{
		Versions: versions,
		Latest:   versions[0],
	}, nil
}

func (goPlugin) DetectVersionFiles() ([]string, error) {
	return []string{"go.mod", ".go-version"}, nil
}

func (goPlugin) ParseVersionFile(filename, content string) (string, error) {
	switch filename {
	case ".go-version":
		return strings.TrimSpace(content), nil
	case "go.mod":
		for _, line := range strings.Split(content, "\n") {
			line = strings.TrimSpace(line)
			if rest, ok := strings.CutPrefix(line, "go "); ok {
				return strings.TrimSpace(rest), nil
			}
		}
		return "", fmt.Errorf("no go directive found in go.mod")
	default:
		return "", fmt.Errorf("unrecognized version file %q", filename)
	}
}

func (goPlugin) DownloadPrebuilt(version string) (wireformat.DownloadPrebuiltOutputWire, error) {
	goos, _, err := polyplugin.GetEnvVar("POLY_GOOS")
	if err != nil {
		return wireformat.DownloadPrebuiltOutputWire{}, err
	}
	if goos == "" {
		goos = "linux"
	}
	goarch, _, err := polyplugin.GetEnvVar("POLY_GOARCH")
	if err != nil {
		return wireformat.DownloadPrebuiltOutputWire{}, err
	}
	if goarch == "" {
		goarch = "amd64"
	}

	archive := fmt.Sprintf("go%s.%s-%s.tar.gz", version, goos, goarch)
	return wireformat.DownloadPrebuiltOutputWire{
		DownloadURL:   "https://go.dev/dl/" + archive,
		ChecksumURL:   "https://go.dev/dl/" + archive + ".sha256",
		ArchivePrefix: "go",
	}, nil
}

func (goPlugin) LocateExecutables() (wireformat.LocateExecutablesOutputWire, error) {
	return wireformat.LocateExecutablesOutputWire{
		Primary: "bin/go",
		Secondary: map[string]string{
			"gofmt": "bin/gofmt",
		},
	}, nil
}

// parseReleaseVersions extracts "go1.22.3" style tags out of go.dev/dl's
// JSON index without pulling in a JSON dependency for one field; the
// index is a list of {"version": "go1.22.3", ...} objects, newest first.
func parseReleaseVersions(body []byte) []string {
	const key = `"version"`
	var out []string
	s := string(body)
	for {
		idx := strings.Index(s, key)
		if idx < 0 {
			break
		}
		s = strings.TrimLeft(s[idx+len(key):], " \t\r\n")
		if !strings.HasPrefix(s, ":") {
			continue
		}
		s = strings.TrimLeft(s[1:], " \t\r\n")
		if !strings.HasPrefix(s, `"`) {
			continue
		}
		s = s[1:]
		end := strings.IndexByte(s, '"')
		if end < 0 {
			break
		}
		out = append(out, strings.TrimPrefix(s[:end], "go"))
		s = s[end:]
	}
	return out
}

func main() {}

var plugin = goPlugin{}

//go:wasmexport register_tool
func abiRegisterTool(_, _ uint32) uint64 {
	return polyplugin.DispatchNoInput(plugin.RegisterTool)
}

//go:wasmexport load_versions
func abiLoadVersions(_, _ uint32) uint64 {
	return polyplugin.DispatchNoInput(plugin.LoadVersions)
}

//go:wasmexport locate_executables
func abiLocateExecutables(_, _ uint32) uint64 {
	return polyplugin.DispatchNoInput(plugin.LocateExecutables)
}

//go:wasmexport detect_version_files
func abiDetectVersionFiles(_, _ uint32) uint64 {
	return polyplugin.DispatchNoInput(func() (wireformat.DetectVersionFilesOutputWire, error) {
		filenames, err := plugin.DetectVersionFiles()
		return wireformat.DetectVersionFilesOutputWire{Filenames: filenames}, err
	})
}

//go:wasmexport parse_version_file
func abiParseVersionFile(ptr, length uint32) uint64 {
	return polyplugin.DispatchWithInput(ptr, length, func(in wireformat.ParseVersionFileInputWire) (wireformat.ParseVersionFileOutputWire, error) {
		spec, err := plugin.ParseVersionFile(in.Filename, in.Content)
		return wireformat.ParseVersionFileOutputWire{Spec: spec}, err
	})
}

//go:wasmexport download_prebuilt
func abiDownloadPrebuilt(ptr, length uint32) uint64 {
	return polyplugin.DispatchWithInput(ptr, length, func(in wireformat.ResolveVersionInputWire) (wireformat.DownloadPrebuiltOutputWire, error) {
		return plugin.DownloadPrebuilt(in.Spec)
	})
}

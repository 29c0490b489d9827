// Package registry implements ports.RegistryIndex: fetching a flat
// plugin catalog from a configured `.prototools` registry URL
// (SPEC_FULL.md §3).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/polytool-dev/polytool/internal/application/ports"
	"github.com/polytool-dev/polytool/internal/domain/values"
)

// Index fetches and decodes a registry's JSON catalog over HTTP.
type Index struct {
	client *http.Client
}

// NewIndex constructs an Index using client for requests, defaulting to
// a client with a conservative timeout when nil.
func NewIndex(client *http.Client) *Index {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Index{client: client}
}

type catalogEntry struct {
	Id          string `json:"id"`
	Locator     string `json:"locator"`
	Description string `json:"description,omitempty"`
}

// Fetch GETs registryURL and decodes it as a JSON array of catalog
// entries.
func (i *Index) Fetch(ctx context.Context, registryURL string) ([]ports.RegistryEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, registryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for registry %s: %w", registryURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching registry %s: %w", registryURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching registry %s: status %d", registryURL, resp.StatusCode)
	}

	var entries []catalogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding registry %s: %w", registryURL, err)
	}

	out := make([]ports.RegistryEntry, 0, len(entries))
	for _, e := range entries {
		id, err := values.NewId(e.Id)
		if err != nil {
			continue
		}
		out = append(out, ports.RegistryEntry{Id: id, Locator: e.Locator, Description: e.Description})
	}
	return out, nil
}

// Package provider implements the collaborators spec.md §1 places
// deliberately out of scope but that an end-to-end run still needs: loading
// a flow manifest, resolving lib:// library locators, compiling WASM
// modules, and resolving context:// built-ins. Together these supply a
// model.Resolver for model.BuildFunctionTable (spec §4.8 step 2).
package provider

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// ManifestProvider fetches raw manifest bytes from a file:// or http(s)://
// URL (spec §6 URL schemes), grounded on the teacher's wire-level request
// handling idiom (internal/http10/parser.go) for the request/response
// shape, using net/http rather than a hand-rolled socket reader since the
// teacher's HTTP/1.0 parser is server-side only and has no client half to
// generalize.
type ManifestProvider struct {
	client *http.Client
	log    zerolog.Logger
}

// NewManifestProvider builds a ManifestProvider with the given fetch
// timeout (<=0 uses 30s).
func NewManifestProvider(timeout time.Duration, log zerolog.Logger) *ManifestProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ManifestProvider{
		client: &http.Client{Timeout: timeout},
		log:    log.With().Str("component", "manifest_provider").Logger(),
	}
}

// Fetch resolves url against its scheme and returns its raw bytes.
func (p *ManifestProvider) Fetch(ctx context.Context, url string) ([]byte, error) {
	switch {
	case strings.HasPrefix(url, "file://"):
		path := strings.TrimPrefix(url, "file://")
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "reading manifest file %q", path)
		}
		return b, nil
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return p.fetchHTTP(ctx, url)
	default:
		return nil, errors.Errorf("unsupported manifest URL scheme: %q", url)
	}
}

func (p *ManifestProvider) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %q", url)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %q", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("fetching %q: unexpected status %s", url, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading response body from %q", url)
	}
	p.log.Debug().Str("url", url).Int("bytes", len(b)).Msg("manifest fetched")
	return b, nil
}

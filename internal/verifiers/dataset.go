package verifiers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/logging"
	"github.com/DataDog/supply-chain-firewall/internal/target"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

const (
	datasetVerifierName = "MaliciousPackagesDatasetVerifier"
	datasetSamplesURL   = "https://raw.githubusercontent.com/DataDog/malicious-software-packages-dataset/main/samples"
)

var datasetDirs = map[ecosystem.Ecosystem]string{
	ecosystem.PyPI: "pypi",
	ecosystem.Npm:  "npm",
}

// DatasetVerifier checks target names against the published
// malicious-software-packages dataset manifests. Version strings are
// deliberately ignored: a package with any known-malicious release is
// treated as malicious.
//
// Manifests are fetched per ecosystem on first use and cached on disk so
// the verifier keeps working offline.
type DatasetVerifier struct {
	client   *http.Client
	baseURL  string
	cacheDir string

	manifests map[ecosystem.Ecosystem]map[string]json.RawMessage
}

// NewDatasetVerifier builds the verifier. cacheDir may be empty to
// disable the on-disk cache.
func NewDatasetVerifier(cacheDir string) *DatasetVerifier {
	return &DatasetVerifier{
		client:   &http.Client{Timeout: 10 * time.Second},
		baseURL:  datasetSamplesURL,
		cacheDir: cacheDir,
	}
}

func (v *DatasetVerifier) Name() string { return datasetVerifierName }

func (v *DatasetVerifier) Verify(ctx context.Context, targets []target.InstallTarget) ([]verifier.Finding, error) {
	if err := v.loadManifests(ctx); err != nil {
		return nil, err
	}

	var findings []verifier.Finding
	for _, t := range targets {
		manifest := v.manifests[t.Ecosystem]
		if manifest == nil {
			continue
		}
		if _, listed := manifest[t.Name]; listed {
			findings = append(findings, verifier.Finding{
				Target:   t.Key(),
				Severity: verifier.SeverityCritical,
				Message:  fmt.Sprintf("The malicious packages dataset lists package %s as malicious", t.Name),
				Verifier: datasetVerifierName,
			})
		}
	}
	return findings, nil
}

func (v *DatasetVerifier) loadManifests(ctx context.Context) error {
	if v.manifests != nil {
		return nil
	}
	manifests := make(map[ecosystem.Ecosystem]map[string]json.RawMessage, len(datasetDirs))
	for eco, dir := range datasetDirs {
		manifest, err := v.fetchManifest(ctx, dir)
		if err != nil {
			return fmt.Errorf("failed to load %s dataset manifest: %w", eco, err)
		}
		manifests[eco] = manifest
	}
	v.manifests = manifests
	return nil
}

// fetchManifest downloads an ecosystem manifest, refreshing the cached
// copy on success and falling back to it on failure.
func (v *DatasetVerifier) fetchManifest(ctx context.Context, dir string) (map[string]json.RawMessage, error) {
	var cachePath string
	if v.cacheDir != "" {
		cachePath = filepath.Join(v.cacheDir, dir+"_manifest.json")
	}

	data, err := v.download(ctx, fmt.Sprintf("%s/%s/manifest.json", v.baseURL, dir))
	if err != nil {
		if cachePath == "" {
			return nil, err
		}
		cached, readErr := os.ReadFile(cachePath)
		if readErr != nil {
			return nil, fmt.Errorf("%w (and no cached manifest is available)", err)
		}
		logging.Get().Debug().Str("manifest", dir).Msg("using cached dataset manifest")
		data = cached
	} else if cachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o700); err == nil {
			if err := os.WriteFile(cachePath, data, 0o600); err != nil {
				logging.Get().Debug().Err(err).Msg("failed to refresh cached dataset manifest")
			}
		}
	}

	var manifest map[string]json.RawMessage
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("malformed dataset manifest: %w", err)
	}
	return manifest, nil
}

func (v *DatasetVerifier) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("manifest download returned status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

package verifiers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/logging"
	"github.com/DataDog/supply-chain-firewall/internal/target"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

const (
	recencyVerifierName = "RecencyVerifier"
	npmRegistryURL      = "https://registry.npmjs.org"
	pypiJSONURL         = "https://pypi.org/pypi"

	// RecencyToleranceVar overrides the default tolerance, in hours.
	RecencyToleranceVar = "SCFW_PACKAGE_RECENCY_TOLERANCE"

	defaultRecencyTolerance = 24 * time.Hour
)

// RecencyVerifier warns about very recently published packages. A
// freshly created package has had no time to accumulate scrutiny, which
// is the window typosquatting and dependency-confusion attacks rely on.
type RecencyVerifier struct {
	client      *http.Client
	npmBaseURL  string
	pypiBaseURL string
	tolerance   time.Duration
	now         func() time.Time
}

func NewRecencyVerifier() *RecencyVerifier {
	return &RecencyVerifier{
		client:      &http.Client{Timeout: 10 * time.Second},
		npmBaseURL:  npmRegistryURL,
		pypiBaseURL: pypiJSONURL,
		tolerance:   recencyTolerance(os.Getenv(RecencyToleranceVar)),
		now:         time.Now,
	}
}

func (v *RecencyVerifier) Name() string { return recencyVerifierName }

// recencyTolerance parses an hour count from the environment override.
// Anything unparsable or negative keeps the default.
func recencyTolerance(s string) time.Duration {
	if s == "" {
		return defaultRecencyTolerance
	}
	hours, err := strconv.Atoi(s)
	if err != nil || hours < 0 {
		logging.Get().Warn().Str("value", s).
			Msgf("invalid %s; using default tolerance", RecencyToleranceVar)
		return defaultRecencyTolerance
	}
	return time.Duration(hours) * time.Hour
}

// Verify looks up each target's registry creation date. A registry
// lookup failure skips that target rather than failing the verifier:
// one unqueryable package must not suppress recency warnings for the
// rest of the set.
func (v *RecencyVerifier) Verify(ctx context.Context, targets []target.InstallTarget) ([]verifier.Finding, error) {
	var findings []verifier.Finding
	for _, t := range targets {
		created, err := v.createdAt(ctx, t)
		if err != nil {
			logging.Get().Warn().Str("package", t.Name).Err(err).
				Msg("failed to determine package creation date")
			continue
		}
		if v.now().Sub(created) >= v.tolerance {
			continue
		}
		findings = append(findings, verifier.Finding{
			Target:   t.Key(),
			Severity: verifier.SeverityWarning,
			Message: fmt.Sprintf("Package %s was created less than %d hours ago: treat new packages with caution",
				t.Name, int(v.tolerance.Hours())),
			Verifier: recencyVerifierName,
		})
	}
	return findings, nil
}

func (v *RecencyVerifier) createdAt(ctx context.Context, t target.InstallTarget) (time.Time, error) {
	switch t.Ecosystem {
	case ecosystem.Npm:
		return v.npmCreatedAt(ctx, t.Name)
	case ecosystem.PyPI:
		return v.pypiCreatedAt(ctx, t.Name)
	default:
		return time.Time{}, fmt.Errorf("no registry known for ecosystem %s", t.Ecosystem)
	}
}

// npmCreatedAt reads the package-level creation timestamp the npm
// registry records under time.created.
func (v *RecencyVerifier) npmCreatedAt(ctx context.Context, name string) (time.Time, error) {
	var meta struct {
		Time struct {
			Created time.Time `json:"created"`
		} `json:"time"`
	}
	if err := v.getJSON(ctx, fmt.Sprintf("%s/%s", v.npmBaseURL, name), &meta); err != nil {
		return time.Time{}, err
	}
	if meta.Time.Created.IsZero() {
		return time.Time{}, fmt.Errorf("npm registry metadata for %s has no creation date", name)
	}
	return meta.Time.Created, nil
}

// pypiCreatedAt takes the earliest upload time across every release
// file; PyPI does not expose a project creation timestamp directly.
func (v *RecencyVerifier) pypiCreatedAt(ctx context.Context, name string) (time.Time, error) {
	var meta struct {
		Releases map[string][]struct {
			UploadTime time.Time `json:"upload_time_iso_8601"`
		} `json:"releases"`
	}
	if err := v.getJSON(ctx, fmt.Sprintf("%s/%s/json", v.pypiBaseURL, url.PathEscape(name)), &meta); err != nil {
		return time.Time{}, err
	}

	var earliest time.Time
	for _, files := range meta.Releases {
		for _, f := range files {
			if f.UploadTime.IsZero() {
				continue
			}
			if earliest.IsZero() || f.UploadTime.Before(earliest) {
				earliest = f.UploadTime
			}
		}
	}
	if earliest.IsZero() {
		return time.Time{}, fmt.Errorf("PyPI metadata for %s has no upload times", name)
	}
	return earliest, nil
}

func (v *RecencyVerifier) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("registry query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registry query returned status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("malformed registry response: %w", err)
	}
	return nil
}

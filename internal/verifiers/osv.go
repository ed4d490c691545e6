// Package verifiers contains the built-in verifier set: every verifier
// here checks installation targets against one reputable source of data
// on vulnerable and malicious open source packages.
package verifiers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/target"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

const (
	osvVerifierName = "OsvVerifier"
	osvQueryURL     = "https://api.osv.dev/v1/querybatch"
	osvVulnURL      = "https://osv.dev/vulnerability"

	// OSV identifiers for malicious packages carry this prefix; they are
	// graded CRITICAL while ordinary vulnerability advisories are
	// WARNING.
	osvMaliciousPrefix = "MAL-"
)

var osvEcosystems = map[ecosystem.Ecosystem]string{
	ecosystem.PyPI: "PyPI",
	ecosystem.Npm:  "npm",
}

// OsvVerifier queries OSV.dev's batch API for advisories affecting the
// target set.
type OsvVerifier struct {
	client   *http.Client
	queryURL string
}

func NewOsvVerifier() *OsvVerifier {
	return &OsvVerifier{
		client:   &http.Client{Timeout: 10 * time.Second},
		queryURL: osvQueryURL,
	}
}

func (v *OsvVerifier) Name() string { return osvVerifierName }

type osvQuery struct {
	Package struct {
		Name      string `json:"name"`
		Ecosystem string `json:"ecosystem"`
	} `json:"package"`
	Version string `json:"version"`
}

type osvBatchResponse struct {
	Results []struct {
		Vulns []struct {
			ID      string `json:"id"`
			Summary string `json:"summary"`
		} `json:"vulns"`
	} `json:"results"`
}

func (v *OsvVerifier) Verify(ctx context.Context, targets []target.InstallTarget) ([]verifier.Finding, error) {
	queries := make([]osvQuery, 0, len(targets))
	for _, t := range targets {
		var q osvQuery
		q.Package.Name = t.Name
		q.Package.Ecosystem = osvEcosystems[t.Ecosystem]
		q.Version = t.Version
		queries = append(queries, q)
	}

	payload, err := json.Marshal(map[string]any{"queries": queries})
	if err != nil {
		return nil, fmt.Errorf("failed to encode OSV query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.queryURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OSV query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OSV query returned status %s", resp.Status)
	}

	var batch osvBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("malformed OSV response: %w", err)
	}
	if len(batch.Results) != len(targets) {
		return nil, fmt.Errorf("OSV returned %d results for %d queries", len(batch.Results), len(targets))
	}

	var findings []verifier.Finding
	for i, result := range batch.Results {
		tgt := targets[i]
		for _, vuln := range result.Vulns {
			severity := verifier.SeverityWarning
			message := fmt.Sprintf("An OSV.dev advisory exists for package %s version %s: %s/%s",
				tgt.Name, tgt.Version, osvVulnURL, vuln.ID)
			if strings.HasPrefix(vuln.ID, osvMaliciousPrefix) {
				severity = verifier.SeverityCritical
				message = fmt.Sprintf("An OSV.dev malicious package disclosure exists for package %s version %s: %s/%s",
					tgt.Name, tgt.Version, osvVulnURL, vuln.ID)
			}
			findings = append(findings, verifier.Finding{
				Target:     tgt.Key(),
				Severity:   severity,
				Message:    message,
				Verifier:   osvVerifierName,
				AdvisoryID: vuln.ID,
			})
		}
	}
	return findings, nil
}

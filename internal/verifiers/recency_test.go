package verifiers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DataDog/supply-chain-firewall/internal/ecosystem"
	"github.com/DataDog/supply-chain-firewall/internal/target"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

var recencyNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// recencyServer serves canned registry metadata: npm packages under
// /npm/<name>, PyPI projects under /pypi/<name>/json.
func recencyServer(t *testing.T, npmCreated map[string]time.Time, pypiUploads map[string][]time.Time) *RecencyVerifier {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/npm/"):
			name := strings.TrimPrefix(r.URL.Path, "/npm/")
			created, ok := npmCreated[name]
			if !ok {
				http.NotFound(w, r)
				return
			}
			fmt.Fprintf(w, `{"time": {"created": %q}}`, created.Format(time.RFC3339))
		case strings.HasPrefix(r.URL.Path, "/pypi/"):
			name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/pypi/"), "/json")
			uploads, ok := pypiUploads[name]
			if !ok {
				http.NotFound(w, r)
				return
			}
			var files []string
			for _, u := range uploads {
				files = append(files, fmt.Sprintf(`{"upload_time_iso_8601": %q}`, u.Format(time.RFC3339)))
			}
			fmt.Fprintf(w, `{"releases": {"1.0": [%s]}}`, strings.Join(files, ","))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	v := NewRecencyVerifier()
	v.npmBaseURL = srv.URL + "/npm"
	v.pypiBaseURL = srv.URL + "/pypi"
	v.tolerance = 24 * time.Hour
	v.now = func() time.Time { return recencyNow }
	return v
}

func TestRecencyVerifier_WarnsOnNewPackages(t *testing.T) {
	v := recencyServer(t,
		map[string]time.Time{
			"brand-new": recencyNow.Add(-2 * time.Hour),
			"left-pad":  recencyNow.Add(-8 * 365 * 24 * time.Hour),
		},
		map[string][]time.Time{},
	)
	targets := []target.InstallTarget{
		{Ecosystem: ecosystem.Npm, Name: "brand-new", Version: "0.0.1"},
		{Ecosystem: ecosystem.Npm, Name: "left-pad", Version: "1.3.0"},
	}

	findings, err := v.Verify(context.Background(), targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %v", len(findings), findings)
	}
	f := findings[0]
	if f.Target.Name != "brand-new" || f.Severity != verifier.SeverityWarning {
		t.Errorf("unexpected finding: %+v", f)
	}
	if !strings.Contains(f.Message, "less than 24 hours ago") {
		t.Errorf("message must state the tolerance window: %q", f.Message)
	}
}

func TestRecencyVerifier_PyPIUsesEarliestUpload(t *testing.T) {
	// A new release of a long-established project is not a new package.
	v := recencyServer(t, nil, map[string][]time.Time{
		"requests": {
			recencyNow.Add(-30 * time.Minute),
			recencyNow.Add(-10 * 365 * 24 * time.Hour),
		},
		"sneaky": {recencyNow.Add(-1 * time.Hour)},
	})
	targets := []target.InstallTarget{
		{Ecosystem: ecosystem.PyPI, Name: "requests", Version: "2.32.0"},
		{Ecosystem: ecosystem.PyPI, Name: "sneaky", Version: "0.0.1"},
	}

	findings, err := v.Verify(context.Background(), targets)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 || findings[0].Target.Name != "sneaky" {
		t.Fatalf("expected only the newly created project flagged, got %v", findings)
	}
}

func TestRecencyVerifier_LookupFailureSkipsPackage(t *testing.T) {
	// "missing" 404s; the remaining target must still be checked.
	v := recencyServer(t,
		map[string]time.Time{"brand-new": recencyNow.Add(-1 * time.Hour)},
		nil,
	)
	targets := []target.InstallTarget{
		{Ecosystem: ecosystem.Npm, Name: "missing", Version: "1.0.0"},
		{Ecosystem: ecosystem.Npm, Name: "brand-new", Version: "0.0.1"},
	}

	findings, err := v.Verify(context.Background(), targets)
	if err != nil {
		t.Fatalf("lookup failures must not fail the verifier: %v", err)
	}
	if len(findings) != 1 || findings[0].Target.Name != "brand-new" {
		t.Fatalf("expected the reachable package's finding to survive, got %v", findings)
	}
}

func TestRecencyTolerance(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{value: "", want: 24 * time.Hour},
		{value: "48", want: 48 * time.Hour},
		{value: "0", want: 0},
		{value: "not-a-number", want: 24 * time.Hour},
		{value: "-3", want: 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := recencyTolerance(tt.value); got != tt.want {
			t.Errorf("recencyTolerance(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}

package manager

import (
	"errors"
	"testing"
)

const npmSillyFixture = `npm verb cli /usr/local/bin/node /usr/local/bin/npm
npm info using npm@10.8.1
npm sill idealTree buildDeps
npm sill placeDep ROOT react@18.2.0 OK for: want ^18.2.0
npm sill placeDep node_modules/react loose-envify@1.4.0 OK for: react@18.2.0 want ^1.1.0
npm sill placeDep node_modules/loose-envify js-tokens@4.0.0 OK for: loose-envify@1.4.0 want ^3.0.0 || ^4.0.0
npm sill reify mark retired []
`

func TestParseNpmPlaceDeps(t *testing.T) {
	specs, err := parseNpmPlaceDeps(npmSillyFixture)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"react@18.2.0", "loose-envify@1.4.0", "js-tokens@4.0.0"}
	if len(specs) != len(want) {
		t.Fatalf("expected %d specs, got %d: %v", len(want), len(specs), specs)
	}
	for i := range want {
		if specs[i] != want[i] {
			t.Errorf("spec %d: expected %s, got %s", i, want[i], specs[i])
		}
	}
}

func TestParseNpmPlaceDeps_NoDeps(t *testing.T) {
	specs, err := parseNpmPlaceDeps("npm info using npm@10.8.1\nnpm sill reify mark retired []\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(specs) != 0 {
		t.Fatalf("expected no specs, got %v", specs)
	}
}

func TestParseNpmPlaceDeps_MalformedLineFailsClosed(t *testing.T) {
	_, err := parseNpmPlaceDeps("npm sill placeDep ROOT\n")
	if !errors.Is(err, ErrResolve) {
		t.Fatalf("expected ErrResolve for truncated placeDep line, got %v", err)
	}
}

func TestNewNpmTargets_SubtractsWholeSpecsOnly(t *testing.T) {
	// preact@18.2.0 ends with the spec react@18.2.0; a substring match
	// would wrongly drop react from the target set.
	listing := "myapp@1.0.0 /home/dev/myapp\n" +
		"+-- preact@18.2.0\n" +
		"`-- js-tokens@4.0.0\n"
	placed := []string{"react@18.2.0", "js-tokens@4.0.0"}

	targets, err := newNpmTargets(placed, listing)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 1 {
		t.Fatalf("expected 1 target, got %d: %v", len(targets), targets)
	}
	if targets[0].Name != "react" || targets[0].Version != "18.2.0" {
		t.Errorf("expected react@18.2.0, got %s@%s", targets[0].Name, targets[0].Version)
	}
}

func TestNewNpmTargets_EmptyListingVerifiesAll(t *testing.T) {
	targets, err := newNpmTargets([]string{"react@18.2.0", "js-tokens@4.0.0"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected all placed deps as targets, got %d: %v", len(targets), targets)
	}
}

func TestNpmTargetFromSpec(t *testing.T) {
	tests := []struct {
		spec    string
		name    string
		version string
		wantErr bool
	}{
		{spec: "react@18.2.0", name: "react", version: "18.2.0"},
		{spec: "@types/node@20.11.5", name: "@types/node", version: "20.11.5"},
		{spec: "react", wantErr: true},
		{spec: "@18.2.0", wantErr: true},
		{spec: "react@", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			tgt, err := npmTargetFromSpec(tt.spec)
			if tt.wantErr {
				if !errors.Is(err, ErrResolve) {
					t.Fatalf("expected ErrResolve, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tgt.Name != tt.name || tgt.Version != tt.version {
				t.Errorf("got %s@%s, want %s@%s", tgt.Name, tgt.Version, tt.name, tt.version)
			}
		})
	}
}

func TestParseNpmListJSON(t *testing.T) {
	data := `{
  "version": "1.0.0",
  "name": "myapp",
  "dependencies": {
    "react": {
      "version": "18.2.0",
      "dependencies": {
        "loose-envify": {
          "version": "1.4.0",
          "dependencies": {"js-tokens": {"version": "4.0.0"}}
        }
      }
    }
  }
}`
	targets, err := parseNpmListJSON([]byte(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 installed packages, got %d: %v", len(targets), targets)
	}
}

func TestNpmIsInstallish(t *testing.T) {
	n := &Npm{executable: "npm"}
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"npm", "install", "react"}, true},
		{[]string{"npm", "i", "react"}, true},
		{[]string{"npm", "add", "react"}, true},
		{[]string{"npm", "update"}, true},
		{[]string{"npm", "ci"}, true},
		{[]string{"npm", "--global", "install", "react"}, true},
		{[]string{"npm", "ls"}, false},
		{[]string{"npm", "run", "install"}, false},
		{[]string{"npm", "uninstall", "react"}, false},
	}
	for _, tt := range tests {
		if got := n.IsInstallish(tt.args); got != tt.want {
			t.Errorf("IsInstallish(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

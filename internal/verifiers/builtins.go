package verifiers

import (
	"path/filepath"

	"github.com/DataDog/supply-chain-firewall/internal/logging"
	"github.com/DataDog/supply-chain-firewall/internal/verifier"
)

// Builtins returns the fixed built-in verifier set. A built-in that
// fails to construct is skipped with a warning rather than aborting
// discovery, mirroring how plugin loading degrades.
func Builtins(homeDir, blocklistPath string) []verifier.Verifier {
	cacheDir := ""
	if homeDir != "" {
		cacheDir = filepath.Join(homeDir, "dataset")
	}
	builtins := []verifier.Verifier{
		NewDatasetVerifier(cacheDir),
		NewOsvVerifier(),
		NewHomoglyphVerifier(),
		NewRecencyVerifier(),
	}

	blocklist, err := NewBlocklistVerifier(blocklistPath)
	if err != nil {
		logging.Get().Warn().Err(err).Msg("skipping blocklist verifier")
		return builtins
	}
	return append(builtins, blocklist)
}

// Package ecosystem enumerates the package registry namespaces supported
// by the firewall. The ecosystem disambiguates identically named packages
// across registries (a PyPI "react" is not the npm "react").
package ecosystem

type Ecosystem string

const (
	PyPI Ecosystem = "PyPI"
	Npm  Ecosystem = "npm"
)

// All returns the supported ecosystems in stable order.
func All() []Ecosystem {
	return []Ecosystem{PyPI, Npm}
}

func (e Ecosystem) String() string {
	return string(e)
}

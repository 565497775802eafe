package resolve

import (
	"strings"

	"github.com/BaSui01/filmforge/types"
)

// Flux exposes a catalog of named models; the dashboard stores short names
// while the vendor API wants the full id. Short names have no separator;
// anything containing '/' or '.' is already an API-facing id and passes
// through untouched, as does any short name the catalog does not know.
var fluxCatalog = map[types.Kind]map[string]string{
	types.KindImage: {
		"pro":     "flux-pro-1.1",
		"ultra":   "flux-pro-1.1-ultra",
		"dev":     "flux-dev",
		"kontext": "flux-kontext-pro",
		"schnell": "flux-schnell",
	},
}

func mapModelID(provider string, kind types.Kind, model string) string {
	if model == "" || provider != "flux" {
		return model
	}
	if strings.ContainsAny(model, "/.") {
		return model
	}
	if full, ok := fluxCatalog[kind][model]; ok {
		return full
	}
	return model
}

// Package locales embeds the translation bundles shipped with the service.
package locales

import "embed"

// FS holds one <lang>.json file per supported language.
//
//go:embed *.json
var FS embed.FS

package engine

// Regex flags are exposed as pattern prefixes. RE2 has no flags argument, so
// a template enables case folding by prepending the flag to its pattern:
//
//	{{ .scene_info.name | regex_match (print RE_IGNORECASE "^landsat") }}
var geoTemplateGlobals = map[string]interface{}{
	"RE_NOFLAG":     "",
	"RE_IGNORECASE": "(?i)",
	"RE_MULTILINE":  "(?m)",
	"RE_DOTALL":     "(?s)",
	// RE2 is always Unicode-aware.
	"RE_UNICODE": "",
}

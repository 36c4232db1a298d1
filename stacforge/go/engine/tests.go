package engine

import "strings"

// Tests are boolean helpers for template conditionals. The tested value is
// piped in, so it arrives as the last argument:
//
//	{{ if .scene_info.name | starts_with "LC08" }}...{{ end }}
var geoTemplateTests = map[string]interface{}{
	"starts_with": testStartsWith,
	"ends_with":   testEndsWith,
	"contains":    testContains,
}

func testStartsWith(prefix, s string) bool {
	return strings.HasPrefix(s, prefix)
}

func testEndsWith(suffix, s string) bool {
	return strings.HasSuffix(s, suffix)
}

func testContains(substring, s string) bool {
	return strings.Contains(s, substring)
}

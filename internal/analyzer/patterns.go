package analyzer

import (
	"embed"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	. "github.com/memoria-dev/memoria/internal/logging"
)

//go:embed patterns.yaml
var patternsFS embed.FS

// configPattern is one row of the embedded config-file pattern table.
type configPattern struct {
	Pattern  string `yaml:"pattern"`
	Category string `yaml:"category"`
	Label    string `yaml:"label"`
}

var configPatterns []configPattern

func init() {
	data, err := patternsFS.ReadFile("patterns.yaml")
	if err != nil {
		L_error("analyzer: failed to read embedded pattern table", "error", err)
		return
	}
	if err := yaml.Unmarshal(data, &configPatterns); err != nil {
		L_error("analyzer: failed to parse embedded pattern table", "error", err)
	}
}

// matchConfigPattern returns the first pattern whose glob matches the
// file's basename, or, for patterns that carry a directory component
// (e.g. ".github/workflows/*.yml"), whose glob matches some path
// suffix of filePath. Returns nil if none match.
func matchConfigPattern(filePath string) *configPattern {
	base := filepath.Base(filePath)
	slashPath := filepath.ToSlash(filePath)

	for i := range configPatterns {
		p := configPatterns[i]
		if !strings.Contains(p.Pattern, "/") {
			if ok, _ := filepath.Match(p.Pattern, base); ok {
				return &p
			}
			continue
		}
		if matchesPathSuffix(slashPath, p.Pattern) {
			return &p
		}
	}
	return nil
}

// matchesPathSuffix reports whether pattern matches path or any
// suffix of path split on '/', so a project-root-relative pattern
// still matches an absolute file path without the caller needing to
// strip the project root first.
func matchesPathSuffix(path, pattern string) bool {
	segments := strings.Split(path, "/")
	for i := range segments {
		candidate := strings.Join(segments[i:], "/")
		if ok, _ := filepath.Match(pattern, candidate); ok {
			return true
		}
	}
	return false
}

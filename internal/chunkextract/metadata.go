package chunkextract

import (
	"regexp"
	"strings"
)

// Limits on extracted arrays (spec.md §4.3 step 4).
const (
	MaxFunctions = 50
	MaxClasses   = 20
	MaxImports   = 50
	MaxExports   = 50
)

// Metadata is the result of regex-based metadata extraction over a file's
// content: function/class names, import targets, export names.
type Metadata struct {
	Functions []string
	Classes   []string
	Imports   []string
	Exports   []string
}

var (
	reTSJSFunction    = regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)`)
	reTSJSArrowConst  = regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=\s*(?:async\s*)?\([^)]*\)\s*(?::\s*[^=]+)?=>`)
	reTSJSExport      = regexp.MustCompile(`^\s*export\s+(?:const|let|var|type|interface)\s+(\w+)`)
	reTSJSClass       = regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)
	reTSJSImport      = regexp.MustCompile(`^\s*import\s+.*from\s+["']([^"']+)["']`)

	rePyDef      = regexp.MustCompile(`^\s*def\s+(\w+)`)
	rePyAsyncDef = regexp.MustCompile(`^\s*async\s+def\s+(\w+)`)
	rePyClass    = regexp.MustCompile(`^\s*class\s+(\w+)`)
	rePyImport   = regexp.MustCompile(`^\s*from\s+([\w.]+)\s+import`)

	reGoFunc   = regexp.MustCompile(`^\s*func\s+(?:\([^)]*\)\s*)?(\w+)`)
	reGoImport = regexp.MustCompile(`^\s*(?:import\s+)?"([^"]+)"`)
)

// ExtractMetadata runs the language's regex family over content, line by
// line, truncating arrays at the spec's limits once they're full.
func ExtractMetadata(lang Language, content string) Metadata {
	var md Metadata
	lines := strings.Split(content, "\n")

	switch lang {
	case LangTypeScript, LangJavaScript:
		for _, line := range lines {
			if len(md.Functions) < MaxFunctions {
				if m := reTSJSFunction.FindStringSubmatch(line); m != nil {
					md.Functions = append(md.Functions, m[1])
				} else if m := reTSJSArrowConst.FindStringSubmatch(line); m != nil {
					md.Functions = append(md.Functions, m[1])
				}
			}
			if len(md.Classes) < MaxClasses {
				if m := reTSJSClass.FindStringSubmatch(line); m != nil {
					md.Classes = append(md.Classes, m[1])
				}
			}
			if len(md.Exports) < MaxExports {
				if m := reTSJSExport.FindStringSubmatch(line); m != nil {
					md.Exports = append(md.Exports, m[1])
				}
			}
			if len(md.Imports) < MaxImports {
				if m := reTSJSImport.FindStringSubmatch(line); m != nil {
					md.Imports = append(md.Imports, m[1])
				}
			}
		}

	case LangPython:
		for _, line := range lines {
			if len(md.Functions) < MaxFunctions {
				if m := rePyAsyncDef.FindStringSubmatch(line); m != nil {
					md.Functions = append(md.Functions, m[1])
				} else if m := rePyDef.FindStringSubmatch(line); m != nil {
					md.Functions = append(md.Functions, m[1])
				}
			}
			if len(md.Classes) < MaxClasses {
				if m := rePyClass.FindStringSubmatch(line); m != nil {
					md.Classes = append(md.Classes, m[1])
				}
			}
			if len(md.Imports) < MaxImports {
				if m := rePyImport.FindStringSubmatch(line); m != nil {
					md.Imports = append(md.Imports, m[1])
				}
			}
		}

	case LangGo:
		for _, line := range lines {
			if len(md.Functions) < MaxFunctions {
				if m := reGoFunc.FindStringSubmatch(line); m != nil {
					md.Functions = append(md.Functions, m[1])
				}
			}
			if len(md.Imports) < MaxImports {
				trimmed := strings.TrimSpace(line)
				if strings.HasPrefix(trimmed, `"`) || strings.HasPrefix(trimmed, "import ") {
					if m := reGoImport.FindStringSubmatch(line); m != nil {
						md.Imports = append(md.Imports, m[1])
					}
				}
			}
		}

	default:
		// Best-effort for languages without a dedicated regex family: may
		// legitimately be empty (spec.md §4.3 step 4).
	}

	return md
}

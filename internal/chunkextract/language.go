// Package chunkextract implements the language detection and metadata/
// pattern extraction steps of the Ingestor (spec.md §4.3 steps 3-5): a
// fixed extension-to-language mapping, a line-based regex family per
// language for functions/classes/imports/exports, and a regex pattern
// catalog for design-pattern detection.
package chunkextract

import (
	"path/filepath"
	"strings"
)

// Language is one of the fixed extensions spec.md §4.3 step 3 names.
// Unknown extensions map to Unknown and are still indexable.
type Language string

const (
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangKotlin     Language = "kotlin"
	LangSwift      Language = "swift"
	LangRuby       Language = "ruby"
	LangPHP        Language = "php"
	LangC          Language = "c"
	LangCPP        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangBash       Language = "bash"
	LangSQL        Language = "sql"
	LangMarkdown   Language = "markdown"
	LangJSON       Language = "json"
	LangYAML       Language = "yaml"
	LangTOML       Language = "toml"
	LangUnknown    Language = "unknown"
)

var extToLang = map[string]Language{
	".ts":    LangTypeScript,
	".tsx":   LangTypeScript,
	".js":    LangJavaScript,
	".jsx":   LangJavaScript,
	".mjs":   LangJavaScript,
	".cjs":   LangJavaScript,
	".py":    LangPython,
	".go":    LangGo,
	".rs":    LangRust,
	".java":  LangJava,
	".kt":    LangKotlin,
	".kts":   LangKotlin,
	".swift": LangSwift,
	".rb":    LangRuby,
	".php":   LangPHP,
	".c":     LangC,
	".h":     LangC,
	".cpp":   LangCPP,
	".cc":    LangCPP,
	".hpp":   LangCPP,
	".cs":    LangCSharp,
	".sh":    LangBash,
	".bash":  LangBash,
	".zsh":   LangBash,
	".sql":   LangSQL,
	".md":    LangMarkdown,
	".markdown": LangMarkdown,
	".json": LangJSON,
	".yaml": LangYAML,
	".yml":  LangYAML,
	".toml": LangTOML,
}

// DetectLanguage maps a file path's extension to a Language. Unknown
// extensions return LangUnknown rather than an error; unknown-language
// files are still indexable with empty metadata.
func DetectLanguage(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extToLang[ext]; ok {
		return lang
	}
	return LangUnknown
}

// Package parser classifies source files into the closed set of languages
// the metric plugins understand.
package parser

import (
	"path"
	"strings"
)

// Language represents a supported language.
type Language string

const (
	LangJava       Language = "java"
	LangKotlin     Language = "kotlin"
	LangTypeScript Language = "typescript"
	LangCSS        Language = "css"
	LangHTML       Language = "html"
	LangSCSS       Language = "scss"
	LangJSON       Language = "json"
	LangYAML       Language = "yaml"
	LangXML        Language = "xml"
	LangMarkdown   Language = "markdown"
	LangText       Language = "text"
	LangUnknown    Language = "unknown"
)

// AllLanguages lists every known language except LangUnknown, in display order.
var AllLanguages = []Language{
	LangJava,
	LangKotlin,
	LangTypeScript,
	LangCSS,
	LangHTML,
	LangSCSS,
	LangJSON,
	LangYAML,
	LangXML,
	LangMarkdown,
	LangText,
}

// FileExtensions maps each language to its recognized file extensions.
var FileExtensions = map[Language][]string{
	LangJava:       {".java"},
	LangKotlin:     {".kt", ".kts"},
	LangTypeScript: {".ts", ".tsx", ".mts", ".cts"},
	LangCSS:        {".css"},
	LangHTML:       {".html", ".htm"},
	LangSCSS:       {".scss"},
	LangJSON:       {".json"},
	LangYAML:       {".yaml", ".yml"},
	LangXML:        {".xml"},
	LangMarkdown:   {".md", ".markdown"},
	LangText:       {".txt"},
}

// extIndex is the reverse of FileExtensions.
var extIndex = func() map[string]Language {
	idx := make(map[string]Language)
	for lang, exts := range FileExtensions {
		for _, ext := range exts {
			idx[ext] = lang
		}
	}
	return idx
}()

// DetectLanguage maps a file name to its language using the lower-cased
// extension. Names without a known extension map to LangUnknown.
func DetectLanguage(fileName string) Language {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		return LangUnknown
	}
	if lang, ok := extIndex[ext]; ok {
		return lang
	}
	return LangUnknown
}

// ParseLanguage converts a serialized language name back into a Language.
// Unrecognized names map to LangUnknown.
func ParseLanguage(name string) Language {
	lang := Language(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := FileExtensions[lang]; ok {
		return lang
	}
	return LangUnknown
}

// SupportedExtensions returns all extensions with a known language.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(extIndex))
	for ext := range extIndex {
		exts = append(exts, ext)
	}
	return exts
}

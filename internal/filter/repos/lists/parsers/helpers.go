package parsers

import (
	"fmt"
	"strings"
)

const (
	categoryDirective = "#listcategory:"
	timeDirective     = "#time:"
	includeDirective  = ".include<"
)

type lineClass uint8

const (
	lineEntry lineClass = iota
	lineEmpty
	lineComment
	lineCategory
	lineTime
	lineInclude
)

// classifyLine sorts a trimmed line into blank, comment, directive or entry.
func classifyLine(trimmed string) lineClass {
	if trimmed == "" {
		return lineEmpty
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, categoryDirective):
		return lineCategory
	case strings.HasPrefix(lower, timeDirective):
		return lineTime
	case strings.HasPrefix(lower, includeDirective):
		return lineInclude
	case strings.HasPrefix(trimmed, "#"):
		return lineComment
	}
	return lineEntry
}

// stripLineBOM removes a UTF-8 byte order mark.
func stripLineBOM(s string) string {
	return strings.TrimPrefix(s, "\uFEFF")
}

// parseCategory extracts the label from `#listcategory: "Label"`.
func parseCategory(trimmed string) (string, error) {
	label := strings.TrimSpace(trimmed[len(categoryDirective):])
	label = strings.Trim(label, `"`)
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("empty list category")
	}
	return label, nil
}

// parseInclude extracts the path from `.Include<path>`.
func parseInclude(trimmed string) (string, error) {
	rest := trimmed[len(includeDirective):]
	end := strings.IndexByte(rest, '>')
	if end < 0 {
		return "", fmt.Errorf("unterminated include")
	}
	if tail := strings.TrimSpace(rest[end+1:]); tail != "" {
		return "", fmt.Errorf("unexpected text after include: %q", tail)
	}
	target := strings.TrimSpace(rest[:end])
	if target == "" {
		return "", fmt.Errorf("empty include path")
	}
	return target, nil
}

// stripInlineComment drops a '#' comment that follows whitespace. A bare '#'
// inside a token is kept because URLs may carry fragments.
func stripInlineComment(line string) string {
	for i := 1; i < len(line); i++ {
		if line[i] == '#' && (line[i-1] == ' ' || line[i-1] == '\t') {
			return line[:i]
		}
	}
	return line
}

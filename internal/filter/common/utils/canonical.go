package utils

import "strings"

var schemes = []string{"http://", "https://", "ftp://"}

// CanonicalDNSName returns a host name lowercased, trimmed and without
// trailing dots.
func CanonicalDNSName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	for strings.HasSuffix(name, ".") {
		name = strings.TrimSuffix(name, ".")
	}
	return name
}

// StripScheme removes a leading http, https or ftp scheme.
func StripScheme(s string) string {
	lower := strings.ToLower(s)
	for _, sc := range schemes {
		if strings.HasPrefix(lower, sc) {
			return s[len(sc):]
		}
	}
	return s
}

// CanonicalSite reduces a site list entry or a request host to the form
// stored in site lists: no scheme, no path, no port, no userinfo.
func CanonicalSite(s string) string {
	s = StripScheme(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '@'); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, ':'); i >= 0 && !strings.Contains(s[i+1:], "]") {
		s = s[:i]
	}
	return CanonicalDNSName(s)
}

// CanonicalURL reduces a URL list entry or a request URL to the form stored
// in URL lists: no scheme, host lowercased, no trailing slash. The path keeps
// its case when preserveCase is set.
func CanonicalURL(s string, preserveCase bool) string {
	s = StripScheme(strings.TrimSpace(s))
	host, path := s, ""
	if i := strings.IndexByte(s, '/'); i >= 0 {
		host, path = s[:i], s[i:]
	}
	if !preserveCase {
		path = strings.ToLower(path)
	}
	return strings.TrimRight(CanonicalDNSName(host)+path, "/")
}

// Reverse returns s with its bytes in reverse order. Suffix indexes compare
// reversed keys byte-wise, so rune boundaries are deliberately ignored.
func Reverse(s string) string {
	b := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		b[len(s)-1-i] = s[i]
	}
	return string(b)
}

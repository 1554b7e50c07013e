package utils

// HexDecode replaces %XX escapes with the byte they encode. Malformed escapes
// are copied through untouched. The input is never modified.
func HexDecode(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '%' && i+2 < len(b) {
			hi, ok1 := unhex(b[i+1])
			lo, ok2 := unhex(b[i+2])
			if ok1 && ok2 {
				out = append(out, hi<<4|lo)
				i += 2
				continue
			}
		}
		out = append(out, b[i])
	}
	return out
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// FoldASCII lowercases ASCII letters in place and returns b.
func FoldASCII(b []byte) []byte {
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return b
}

// CollapseSpace rewrites runs of ASCII whitespace as a single space and pads
// the result with one leading and one trailing space, so phrases written with
// surrounding spaces match at word boundaries.
func CollapseSpace(b []byte) []byte {
	out := make([]byte, 0, len(b)+2)
	out = append(out, ' ')
	for _, c := range b {
		if isSpace(c) {
			if out[len(out)-1] != ' ' {
				out = append(out, ' ')
			}
			continue
		}
		out = append(out, c)
	}
	if out[len(out)-1] != ' ' {
		out = append(out, ' ')
	}
	return out
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// NormalizePhrase prepares list phrase text the way documents are prepared
// before a scan: ASCII whitespace runs become one space and ASCII letters are
// folded unless preserveCase. Other bytes are kept as they are.
func NormalizePhrase(p string, preserveCase bool) string {
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		if isSpace(c) {
			if len(out) == 0 || out[len(out)-1] != ' ' {
				out = append(out, ' ')
			}
			continue
		}
		out = append(out, c)
	}
	if !preserveCase {
		FoldASCII(out)
	}
	return string(out)
}

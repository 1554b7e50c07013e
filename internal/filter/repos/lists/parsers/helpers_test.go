package parsers

import "testing"

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		in   string
		want lineClass
	}{
		{"", lineEmpty},
		{"# comment", lineComment},
		{"#listcategory: \"x\"", lineCategory},
		{"#ListCategory: \"x\"", lineCategory},
		{"#time: 0 0 24 0 0", lineTime},
		{".Include</etc/list>", lineInclude},
		{".include<rel>", lineInclude},
		{"<phrase>", lineEntry},
		{"example.com", lineEntry},
	}
	for _, tt := range tests {
		if got := classifyLine(tt.in); got != tt.want {
			t.Errorf("classifyLine(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseInclude(t *testing.T) {
	if p, err := parseInclude(".Include</etc/lists/x>"); err != nil || p != "/etc/lists/x" {
		t.Fatalf("parseInclude = %q, %v", p, err)
	}
	for _, bad := range []string{".Include<", ".Include<>", ".Include<a> b"} {
		if _, err := parseInclude(bad); err == nil {
			t.Errorf("parseInclude(%q) expected error", bad)
		}
	}
}

func TestStripInlineComment(t *testing.T) {
	tests := []struct{ in, want string }{
		{"example.com # note", "example.com "},
		{"example.com\t#note", "example.com\t"},
		{"example.com/#frag", "example.com/#frag"},
		{"#", "#"},
	}
	for _, tt := range tests {
		if got := stripInlineComment(tt.in); got != tt.want {
			t.Errorf("stripInlineComment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokenizePhraseLine(t *testing.T) {
	pl, err := tokenizePhraseLine("<a>,< b >,<c><-20>")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(pl.phrases) != 3 || pl.phrases[1] != " b " || !pl.hasWeight || pl.weight != -20 {
		t.Fatalf("unexpected tokens %+v", pl)
	}
	pl, err = tokenizePhraseLine("<solo>")
	if err != nil || pl.hasWeight || len(pl.phrases) != 1 {
		t.Fatalf("unexpected solo tokens %+v err=%v", pl, err)
	}
	if _, err := tokenizePhraseLine("<a><1><2>"); err == nil {
		t.Fatal("expected error for double weight")
	}
	if _, err := tokenizePhraseLine("<a><1"); err == nil {
		t.Fatal("expected error for unterminated weight")
	}
}

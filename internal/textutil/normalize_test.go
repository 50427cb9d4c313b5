package textutil

import "testing"

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"crlf to lf", "a\r\nb", "a\nb"},
		{"bare cr to lf", "a\rb", "a\nb"},
		{"fullwidth space", "气虚　体质", "气虚 体质"},
		{"whitespace runs", "a  \t b", "a b"},
		{"blank lines collapsed", "a\n\n\n\nb", "a\n\nb"},
		{"single blank line kept", "a\n\nb", "a\n\nb"},
		{"trimmed", "  a  ", "a"},
		{"empty", "", ""},
		{"only whitespace", " \t\n ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeText(tt.in); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTextIdempotent(t *testing.T) {
	in := "a\r\n\r\n\r\n\r\nb　 c"
	once := NormalizeText(in)
	if twice := NormalizeText(once); twice != once {
		t.Errorf("not idempotent: %q -> %q", once, twice)
	}
}

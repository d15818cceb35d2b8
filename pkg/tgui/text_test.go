package tgui

import "testing"

func TestTruncRunes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"hello", 1, "…"},
		{"hello", 0, ""},
		{"£7.0m → £7.1m", 6, "£7.0m…"},
	}
	for _, tt := range tests {
		got := TruncRunes(tt.in, tt.n)
		if got != tt.want {
			t.Fatalf("TruncRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
		if Len(got) > tt.n && tt.n > 0 {
			t.Fatalf("TruncRunes(%q, %d) has %d runes", tt.in, tt.n, Len(got))
		}
	}
}

func TestEscAndTags(t *testing.T) {
	t.Parallel()
	if got := B("Hojbjerg <3 & co").String(); got != "<b>Hojbjerg &lt;3 &amp; co</b>" {
		t.Fatalf("B = %q", got)
	}
	if got := Esc(`"quoted"`).String(); got != "&#34;quoted&#34;" {
		t.Fatalf("Esc = %q", got)
	}
}

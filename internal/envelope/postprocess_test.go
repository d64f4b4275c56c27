package envelope

import (
	"strings"
	"testing"
)

func TestCapHeights(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "oversized height",
			in:   `<div style="height: 1200px; color:red">`,
			want: `<div style="max-height:800px; overflow:hidden; color:red">`,
		},
		{
			name: "oversized min-height",
			in:   `<div style="padding:0;min-height:950px">`,
			want: `<div style="padding:0;max-height:800px; overflow:hidden">`,
		},
		{
			name: "viewport height",
			in:   `<main style="height:100vh">`,
			want: `<main style="height:auto; max-height:800px; overflow:hidden">`,
		},
		{
			name: "stylesheet rule",
			in:   `<style>.hero{min-height:100vh}</style>`,
			want: `<style>.hero{height:auto; max-height:800px; overflow:hidden}</style>`,
		},
		{
			name: "within bounds",
			in:   `<div style="height:800px;min-height:320px">`,
			want: `<div style="height:800px;min-height:320px">`,
		},
		{
			name: "max and line height untouched",
			in:   `<div style="max-height:2000px;line-height:1000px">`,
			want: `<div style="max-height:2000px;line-height:1000px">`,
		},
		{
			name: "partial viewport untouched",
			in:   `<div style="height:50vh">`,
			want: `<div style="height:50vh">`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CapHeights(tt.in); got != tt.want {
				t.Fatalf("CapHeights(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestErrorHTMLEscapesMessage(t *testing.T) {
	got := ErrorHTML(`anthropic: <script>alert(1)</script>`)
	if strings.Contains(got, "<script>") {
		t.Fatalf("message not escaped: %s", got)
	}
	if !strings.Contains(got, "&lt;script&gt;") || !strings.Contains(got, `data-frame-error="true"`) {
		t.Fatalf("unexpected artifact: %s", got)
	}
	if !strings.Contains(ErrorHTML(" "), "Unknown error") {
		t.Fatal("expected fallback message")
	}
}

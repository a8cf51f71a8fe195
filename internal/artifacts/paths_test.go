package artifacts

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "", want: ""},
		{in: "a/b/../c.png", want: "a/c.png"},
		{in: `C:\data\face\001.png`, want: "C:/data/face/001.png"},
		{in: "/data//face/./002.png", want: "/data/face/002.png"},
		{in: "./x.wav", want: "x.wav"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestReconstructPath(t *testing.T) {
	tests := []struct {
		name, in, prefix, want string
	}{
		{name: "no prefix", in: "/data/a.png", prefix: "", want: "/data/a.png"},
		{name: "relative", in: "face/a.png", prefix: "/mnt/share", want: "/mnt/share/face/a.png"},
		{name: "absolute", in: "/data/a.png", prefix: "/mnt/share", want: "/mnt/share/data/a.png"},
		{name: "already prefixed", in: "/mnt/share/data/a.png", prefix: "/mnt/share/", want: "/mnt/share/data/a.png"},
		{name: "sibling not prefixed", in: "/mnt/shared/a.png", prefix: "/mnt/share", want: "/mnt/share/mnt/shared/a.png"},
		{name: "parent stays under prefix", in: "../x.png", prefix: "pre", want: "pre/x.png"},
		{name: "grandparent stays under prefix", in: "../../a.png", prefix: "/mnt/share", want: "/mnt/share/a.png"},
		{name: "bare parent", in: "..", prefix: "/mnt/share", want: "/mnt/share"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReconstructPath(tt.in, tt.prefix); got != tt.want {
				t.Fatalf("ReconstructPath(%q, %q) = %q, want %q", tt.in, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestDisplayPathIsIdempotent(t *testing.T) {
	inputs := []string{"a//b/./c.png", `x\y\z.jp2`, "/abs/../abs/f.wav", "rel.png", "", "../x.png", "../../a.png", `..\up\b.png`}
	prefixes := []string{"", "/mnt/share", "remote/root/", "/", "pre"}
	for _, in := range inputs {
		for _, prefix := range prefixes {
			once := DisplayPath(in, prefix)
			twice := DisplayPath(once, prefix)
			if once != twice {
				t.Fatalf("DisplayPath not idempotent for %q/%q: %q then %q", in, prefix, once, twice)
			}
		}
	}
}

func TestRelativeTo(t *testing.T) {
	if got := RelativeTo("/data/in/a.png", "/data/in"); got != "a.png" {
		t.Fatalf("RelativeTo = %q", got)
	}
	if got := RelativeTo("/other/a.png", "/data/in"); got != "/other/a.png" {
		t.Fatalf("RelativeTo outside cwd = %q", got)
	}
	if got := RelativeTo("/data/a.png", ""); got != "/data/a.png" {
		t.Fatalf("RelativeTo empty cwd = %q", got)
	}
}

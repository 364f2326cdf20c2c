package validate

import (
	"errors"
	"strings"
	"testing"
)

func TestURL_Valid(t *testing.T) {
	tests := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"  https://youtu.be/dQw4w9WgXcQ  ",
		"http://vimeo.com/123456",
		"https://www.youtube.com/watch?v=abc&list=PL123",
		"https://example.com/video_(official)",
	}

	for _, raw := range tests {
		got, err := URL(raw)
		if err != nil {
			t.Errorf("URL(%q) unexpected error: %v", raw, err)
			continue
		}
		if got != strings.TrimSpace(raw) {
			t.Errorf("URL(%q) = %q, want trimmed input", raw, got)
		}
	}
}

func TestURL_Invalid(t *testing.T) {
	tests := []struct {
		raw  string
		want error
	}{
		{"", ErrEmptyURL},
		{"   ", ErrEmptyURL},
		{"ftp://example.com/file", ErrInvalidURL},
		{"file:///etc/passwd", ErrInvalidURL},
		{"youtube.com/watch?v=1", ErrInvalidURL},
		{"https://", ErrInvalidURL},
		{"http://localhost:8080/x", ErrPrivateHost},
		{"http://127.0.0.1/x", ErrPrivateHost},
		{"http://10.1.2.3/x", ErrPrivateHost},
		{"http://172.16.0.1/x", ErrPrivateHost},
		{"http://172.31.255.1/x", ErrPrivateHost},
		{"http://192.168.1.1/x", ErrPrivateHost},
		{"http://[::1]/x", ErrPrivateHost},
		{"http://0.0.0.0/x", ErrPrivateHost},
		{"https://example.com/$(rm)", ErrDangerousInput},
		{"https://example.com/${HOME}", ErrDangerousInput},
		{"https://example.com/`id`", ErrDangerousInput},
		{"https://example.com/a;ls", ErrDangerousInput},
		{"https://example.com/a|cat", ErrDangerousInput},
		{"https://example.com/a>/tmp/x", ErrDangerousInput},
		{"https://example.com/" + strings.Repeat("a", MaxURLLength), ErrInvalidURL},
	}

	for _, tt := range tests {
		_, err := URL(tt.raw)
		if !errors.Is(err, tt.want) {
			t.Errorf("URL(%q) error = %v, want %v", tt.raw, err, tt.want)
		}
	}
}

func TestURL_PublicRangeNearPrivateIsAllowed(t *testing.T) {
	for _, raw := range []string{"http://172.32.0.1/x", "http://172.15.0.1/x", "http://11.0.0.1/x"} {
		if _, err := URL(raw); err != nil {
			t.Errorf("URL(%q) unexpected error: %v", raw, err)
		}
	}
}

func TestIsPlaylistURL(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://www.youtube.com/playlist?list=PL123", true},
		{"https://www.youtube.com/watch?v=abc&list=PL123", true},
		{"https://youtu.be/abc?list=PL123", true},
		{"https://www.youtube.com/watch?v=abc", false},
		{"https://vimeo.com/123", false},
	}

	for _, tt := range tests {
		if got := IsPlaylistURL(tt.raw); got != tt.want {
			t.Errorf("IsPlaylistURL(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestIsMixPlaylist(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://www.youtube.com/watch?v=abc&list=RDabc", true},
		{"https://www.youtube.com/watch?v=abc&list=RDAMVMabc", true},
		{"https://www.youtube.com/watch?v=abc&list=RDCMUCxyz", true},
		{"https://www.youtube.com/watch?v=abc&list=RDMMabc&start_radio=1", true},
		{"https://www.youtube.com/playlist?list=PLabc", false},
		{"https://www.youtube.com/watch?v=abc", false},
		{"::not a url", false},
	}

	for _, tt := range tests {
		if got := IsMixPlaylist(tt.raw); got != tt.want {
			t.Errorf("IsMixPlaylist(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestPlaylistID(t *testing.T) {
	if got := PlaylistID("https://www.youtube.com/watch?v=a&list=PLxyz&index=2"); got != "PLxyz" {
		t.Errorf("PlaylistID = %q, want PLxyz", got)
	}
	if got := PlaylistID("https://www.youtube.com/watch?v=a"); got != "" {
		t.Errorf("PlaylistID = %q, want empty", got)
	}
}

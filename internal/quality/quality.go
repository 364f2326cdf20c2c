// Package quality maps the short quality names offered by the CLI and the
// window ("best", "1080p", "mp3", ...) to fixed yt-dlp format selectors and
// post-processing settings.
package quality

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownQuality is returned by Lookup for names outside the table
var ErrUnknownQuality = errors.New("unknown quality")

// Post-processor names as yt-dlp reports them
const (
	PPMetadata       = "FFmpegMetadata"
	PPExtractAudio   = "FFmpegExtractAudio"
	PPEmbedThumbnail = "EmbedThumbnail"
)

const (
	// Default is used when nothing else is configured
	Default = "best"

	videoSelector = "bestvideo+bestaudio/best"
	audioSelector = "bestaudio/best"
)

// Profile is the complete engine configuration derived from a quality name
type Profile struct {
	Name           string
	Format         string // yt-dlp format selector
	MergeFormat    string // container for merged video, empty for audio
	AudioOnly      bool
	AudioCodec     string
	AudioQuality   string // yt-dlp --audio-quality value, "0" is best/lossless
	EmbedMetadata  bool
	EmbedThumbnail bool
}

// Postprocessors lists the yt-dlp post-processors the profile enables, in run order
func (p Profile) Postprocessors() []string {
	var pps []string
	if p.AudioOnly {
		pps = append(pps, PPExtractAudio)
	}
	if p.EmbedMetadata {
		pps = append(pps, PPMetadata)
	}
	if p.EmbedThumbnail {
		pps = append(pps, PPEmbedThumbnail)
	}
	return pps
}

// String renders the profile the way it is logged before a download
func (p Profile) String() string {
	if p.AudioOnly {
		return fmt.Sprintf("%s (format: %s, audio: %s q%s)", p.Name, p.Format, p.AudioCodec, p.AudioQuality)
	}
	return fmt.Sprintf("%s (format: %s, merge: %s)", p.Name, p.Format, p.MergeFormat)
}

func video(name string, height int) Profile {
	format := videoSelector
	if height > 0 {
		format = fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best", height)
	}
	return Profile{
		Name:          name,
		Format:        format,
		MergeFormat:   "mp4",
		EmbedMetadata: true,
	}
}

func audio(name, codec, q string) Profile {
	return Profile{
		Name:          name,
		Format:        audioSelector,
		AudioOnly:     true,
		AudioCodec:    codec,
		AudioQuality:  q,
		EmbedMetadata: true,
		// wav has no cover art container support
		EmbedThumbnail: codec != "wav",
	}
}

// order is the stable listing order for Names
var order = []string{
	"best", "native", "2160p", "1080p", "720p", "480p", "360p",
	"mp3", "wav", "flac", "aac", "opus", "audio",
}

var table = map[string]Profile{
	"best": video("best", 0),
	// native keeps the original streams: no re-encode, no post-processing
	"native": {Name: "native", Format: videoSelector, MergeFormat: "mkv"},
	"2160p":  video("2160p", 2160),
	"1080p":  video("1080p", 1080),
	"720p":   video("720p", 720),
	"480p":   video("480p", 480),
	"360p":   video("360p", 360),
	"mp3":    audio("mp3", "mp3", "320"),
	"wav":    audio("wav", "wav", "0"),
	"flac":   audio("flac", "flac", "0"),
	"aac":    audio("aac", "aac", "256"),
	"opus":   audio("opus", "opus", "128"),
	"audio":  audio("audio", "mp3", "320"),
}

// Lookup returns the profile for name. Matching ignores case and surrounding space.
func Lookup(name string) (Profile, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	p, ok := table[key]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q (valid: %s)", ErrUnknownQuality, name, strings.Join(order, ", "))
	}
	return p, nil
}

// MustLookup is Lookup for names known at compile time
func MustLookup(name string) Profile {
	p, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return p
}

// IsValid reports whether name is in the table
func IsValid(name string) bool {
	_, err := Lookup(name)
	return err == nil
}

// IsAudio reports whether name selects an audio-only profile
func IsAudio(name string) bool {
	p, err := Lookup(name)
	return err == nil && p.AudioOnly
}

// ForceAudio turns a video profile into the default audio profile and leaves
// audio profiles untouched.
func ForceAudio(p Profile) Profile {
	if p.AudioOnly {
		return p
	}
	return table["audio"]
}

// Names returns every accepted quality name in a stable order
func Names() []string {
	return append([]string(nil), order...)
}

// GUIOptions returns the subset offered in the desktop quality dropdown
func GUIOptions() []string {
	return []string{"best", "native", "2160p", "1080p", "720p", "480p", "mp3", "wav", "flac"}
}

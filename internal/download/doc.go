// Package download implements the download pipeline on top of yt-dlp (via
// github.com/lrstanley/go-ytdlp). It turns a quality profile, a cookie source
// and the discovered toolchain into an engine invocation, retries recoverable
// failures, tracks task state and fans progress out to the front-ends.
package download

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ytget/video-downloader/internal/toolchain"
)

// Report formats for check-deps
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type depsReport struct {
	OK           bool                   `json:"ok" yaml:"ok"`
	Dependencies []toolchain.Dependency `json:"dependencies" yaml:"dependencies"`
	Missing      []string               `json:"missing,omitempty" yaml:"missing,omitempty"`
}

func (a *App) checkDepsCommand() *cobra.Command {
	var (
		format  string
		install bool
	)
	cmd := &cobra.Command{
		Use:   "check-deps",
		Short: "Check yt-dlp, ffmpeg, ffprobe and the JavaScript runtime",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			format = strings.ToLower(format)
			switch format {
			case FormatText, FormatJSON, FormatYAML:
			default:
				return usagef("unknown format %q (valid: text, json, yaml)", format)
			}

			_, logger, _, err := a.setup()
			if err != nil {
				return err
			}
			tc := a.Discover(cmd.Context(), toolchain.Options{AllowDownload: install, Logger: logger})
			deps := tc.Check(cmd.Context())
			report := depsReport{Dependencies: deps, Missing: toolchain.MissingRequired(deps)}
			report.OK = len(report.Missing) == 0

			if err := writeReport(a.Stdout, format, report); err != nil {
				return err
			}
			if !report.OK {
				hint := ""
				if !install {
					hint = ", run 'vdl check-deps --install' to fetch yt-dlp"
				}
				return fmt.Errorf("missing required dependencies: %s%s", strings.Join(report.Missing, ", "), hint)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", FormatText, "output format: text, json or yaml")
	cmd.Flags().BoolVar(&install, "install", false, "download yt-dlp into the user cache when it is missing")
	return cmd
}

func writeReport(w io.Writer, format string, r depsReport) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, d := range r.Dependencies {
		mark := "✓"
		switch {
		case !d.Found && d.Required:
			mark = "✗"
		case !d.Found:
			mark = "-"
		}
		version := d.Version
		if version == "" {
			version = "?"
		}
		detail := d.Path
		if d.Bundled {
			detail += " (bundled)"
		}
		if d.Error != "" {
			if detail != "" {
				detail += ": "
			}
			detail += d.Error
		}
		if !d.Found {
			version = ""
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", mark, d.Name, version, detail)
	}
	return tw.Flush()
}

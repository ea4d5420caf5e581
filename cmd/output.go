// Package cmd provides the summit CLI commands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/width"
	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/summit/client"
	"github.com/otherjamesbrown/summit/config"
	"github.com/otherjamesbrown/summit/pkg/logging"
)

// resolveFormat picks the flag value when set, otherwise the configured default.
func resolveFormat(cfg *config.Config, flag string) (config.OutputFormat, error) {
	format := cfg.OutputFormat
	if flag != "" {
		format = config.OutputFormat(flag)
	}
	if !format.IsValid() {
		return "", fmt.Errorf("invalid output format: %s (must be text, json, or yaml)", format)
	}
	return format, nil
}

// writeStructured encodes v as indented JSON or as YAML. YAML goes through
// JSON first so both formats share the same field names.
func writeStructured(w io.Writer, format config.OutputFormat, v interface{}) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return fmt.Errorf("encoding output: %w", err)
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	default:
		return fmt.Errorf("format %s is not structured", format)
	}
}

// clientOptions builds the shared client options from configuration.
func clientOptions(cfg *config.Config) *client.Options {
	return &client.Options{
		Timeout: cfg.Timeout,
		Logger:  logging.MustGlobal(),
	}
}

// truncate shortens s to max runes, ending with "…" when cut.
// truncate shortens s to at most max terminal columns.
func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if displayWidth(s) <= max {
		return s
	}
	var b strings.Builder
	used := 0
	for _, r := range s {
		w := runeWidth(r)
		if used+w > max-1 {
			break
		}
		b.WriteRune(r)
		used += w
	}
	return b.String() + "…"
}

// pad right-pads s with spaces to n terminal columns.
func pad(s string, n int) string {
	if w := displayWidth(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}

func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}

// runeWidth is 2 for East Asian wide and fullwidth runes (Hangul, CJK).
func runeWidth(r rune) int {
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

func valueOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

package cmd

import (
	"encoding/json"
	"io"
	"strings"
	"unicode"
)

func writeJSON(output io.Writer, value any) error {
	enc := json.NewEncoder(output)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}

package main

import (
	"encoding/json"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9 \-]+`)

func basicSanitize(input string) string {
	safeSlug := unsafeChars.ReplaceAllString(input, "")

	// Ensure no leading/trailing dashes
	return strings.Trim(safeSlug, "-")
}

func validateYear(y int) bool {
	return y >= 2000 && y <= 2100
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique index")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Encoding response")
	}
}

// writeError replies with {"error": msg}, the shape the save endpoint's
// callers read.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

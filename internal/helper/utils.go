package helper

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// PrettyPrint writes v as indented JSON.
func PrettyPrint(w io.Writer, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return
	}
	fmt.Fprintln(w, string(b))
}

// CreateFolder creates path and any missing parents.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// ReplaceDir moves src to dst, replacing any existing dst. The previous dst is
// kept as dst+".old" until src is in place and restored if the final rename fails.
func ReplaceDir(src, dst string) error {
	backup := dst + ".old"
	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("failed to clear backup %s: %w", backup, err)
	}

	hadPrevious := true
	if err := os.Rename(dst, backup); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to move %s aside: %w", dst, err)
		}
		hadPrevious = false
	}

	if err := os.Rename(src, dst); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(backup, dst); restoreErr != nil {
				log.Error().Err(restoreErr).Str("backup", backup).Msg("Failed to restore previous directory")
			}
		}
		return fmt.Errorf("failed to move %s into place: %w", src, err)
	}

	if hadPrevious {
		if err := os.RemoveAll(backup); err != nil {
			log.Warn().Err(err).Str("backup", backup).Msg("Failed to remove previous directory")
		}
	}
	return nil
}

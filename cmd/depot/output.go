package main

import (
	"fmt"
	"os"
	"time"

	"depot/internal/api"
	"depot/internal/format"
	"depot/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeFileGroups(groups []api.FileGroup) error {
	for _, group := range groups {
		name := group.Name
		if name == "" {
			name = "(no folder)"
		}
		if err := writePlain("%s\n", name); err != nil {
			return err
		}
		if len(group.Files) == 0 {
			if err := writePlain("  (empty)\n"); err != nil {
				return err
			}
			continue
		}
		for _, file := range group.Files {
			if err := writePlain("  %s\n", formatFileLine(file)); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatFileLine(file models.File) string {
	marker := " "
	if file.IsDuplicate {
		marker = "="
	}
	return fmt.Sprintf("%s %s %10s  %s", file.ID, marker, format.MB(file.SizeBytes), file.Filename)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

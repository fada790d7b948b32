package server

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fileIDRegex = regexp.MustCompile(`^fi-[0-9a-z]{6}$`)
	tokenRegex  = regexp.MustCompile(`^[0-9a-fA-F-]{36}$`)
)

const maxFolderNameLength = 100

func validateFileID(id string) bool {
	return fileIDRegex.MatchString(id)
}

func validateShareToken(token string) bool {
	return tokenRegex.MatchString(token)
}

func normalizeFolderName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if len(value) > maxFolderNameLength {
		return "", badRequestCode(fmt.Errorf("folder name too long"), ErrCodeInvalidFolder)
	}
	if strings.ContainsAny(value, "/\\\x00") {
		return "", badRequestCode(fmt.Errorf("folder name must not contain path separators"), ErrCodeInvalidFolder)
	}
	return value, nil
}

// sanitizeFilename keeps only the base name of a client-supplied filename.
func sanitizeFilename(value string) string {
	value = strings.TrimSpace(value)
	value = strings.ReplaceAll(value, "\\", "/")
	if idx := strings.LastIndex(value, "/"); idx >= 0 {
		value = value[idx+1:]
	}
	value = strings.Trim(value, ".")
	return value
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// imageMIMETypes maps common image extensions to MIME types.
var imageMIMETypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// FileToDataURI reads a file and encodes it as a base64 data URI.
// Unknown extensions fall back to application/octet-stream.
func FileToDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	mime, ok := imageMIMETypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		mime = "application/octet-stream"
	}

	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

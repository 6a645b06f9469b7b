package object

import (
	"context"
	"fmt"
	"io"
	"path"

	"iprisk-backend/internal/shared/util"
)

// Store persists report artifacts under caller-chosen keys.
type Store interface {
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
}

// ArtifactKey builds the storage key for a run artifact. The user segment is
// hashed so keys never carry raw identifiers.
func ArtifactKey(userID, runID, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	owner := userID
	if owner == "" {
		owner = "guest"
	}
	return path.Join("reports", util.OwnerKey(owner), runID, name), nil
}

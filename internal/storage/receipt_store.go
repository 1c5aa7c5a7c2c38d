package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrUnsupportedFileType is returned when an uploaded receipt has an
// extension outside the accepted set.
var ErrUnsupportedFileType = fmt.Errorf("unsupported receipt file type")

// allowedExtensions are the receipt formats the finance office accepts.
var allowedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// ReceiptStore persists uploaded receipt files on the local filesystem,
// one file per claim, named after the owning claim's UUID.
type ReceiptStore struct {
	baseDir string
	logger  *zap.Logger
}

// NewReceiptStore creates a receipt store rooted at baseDir.
func NewReceiptStore(baseDir string, logger *zap.Logger) (*ReceiptStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create receipt directory: %w", err)
	}
	return &ReceiptStore{
		baseDir: baseDir,
		logger:  logger,
	}, nil
}

// Save writes an uploaded receipt for the given claim and returns the stored
// path. The stored name is {claimID}_{sanitized original name}.
func (s *ReceiptStore) Save(claimID, originalName string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	base := sanitizeFilename(strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName)))
	if base == "" {
		base = "receipt"
	}

	fullPath := filepath.Join(s.baseDir, fmt.Sprintf("%s_%s%s", claimID, base, ext))
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write receipt file",
			zap.String("path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to write receipt file: %w", err)
	}

	s.logger.Debug("Receipt saved",
		zap.String("claim_id", claimID),
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return fullPath, nil
}

// Remove deletes a stored receipt. A missing file is not an error.
func (s *ReceiptStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := s.validatePath(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove receipt file: %w", err)
	}
	return nil
}

// validatePath checks that the path stays within the store's base directory.
func (s *ReceiptStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes receipt directory: %s", fullPath)
	}
	return nil
}

// sanitizeFilename keeps letters, digits, dashes, underscores and dots,
// replacing everything else with an underscore.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

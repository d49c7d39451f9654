package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/cadence/internal/calendar"
	"github.com/hpungsan/cadence/internal/errors"
)

// ExportFileResult describes an iCalendar file written by ExportICSFile.
type ExportFileResult struct {
	Path   string `json:"path"`
	Events int    `json:"events"`
	Source Source `json:"source"`
}

// ExportICSFile renders the events matching filter and writes them to path.
// The file is written to a temporary sibling and renamed into place, so an
// existing calendar is left intact when the write fails.
func (c *Coordinator) ExportICSFile(ctx context.Context, req Request, filter calendar.Filter, name, path string) (*ExportFileResult, error) {
	if err := checkCalendarPath(path); err != nil {
		return nil, err
	}
	doc, res, err := c.ExportICS(ctx, req, filter, name)
	if err != nil {
		return nil, err
	}
	if err := writeCalendarFile(path, doc); err != nil {
		return nil, err
	}
	return &ExportFileResult{Path: path, Events: len(res.Events), Source: res.Source}, nil
}

// checkCalendarPath rejects traversal, non-.ics names and symlinks.
func checkCalendarPath(path string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if part == ".." {
			return errors.NewInvalidRequest("path must not contain directory traversal (..)")
		}
	}
	if !strings.EqualFold(filepath.Ext(path), ".ics") {
		return errors.NewInvalidRequest("path must have .ics extension")
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}
	if info, err := os.Lstat(filepath.Dir(abs)); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("parent directory must not be a symlink")
	}
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

func writeCalendarFile(path, doc string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.WriteString(doc); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Close(); err != nil {
		file = nil
		return errors.NewInternal(err)
	}
	file = nil

	if err := os.Rename(tempPath, path); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to finalize export file: %w", err))
	}
	success = true
	return nil
}

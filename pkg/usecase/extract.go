package usecase

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// extractArchive unpacks a repository zipball into a fresh temporary
// directory and returns the extracted work tree. GitHub archives wrap
// everything in a single `owner-repo-sha` directory, which is unwrapped
// so the result points at the project root.
func extractArchive(ctx context.Context, data []byte) (*model.CheckoutResult, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open zip archive")
	}

	tempDir, err := os.MkdirTemp("", "drover-checkout-*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create checkout directory")
	}
	if err := os.Chmod(tempDir, 0700); err != nil {
		_ = os.RemoveAll(tempDir)
		return nil, goerr.Wrap(err, "failed to restrict checkout directory permission")
	}

	result := &model.CheckoutResult{Dir: tempDir}
	for _, file := range reader.File {
		size, err := extractFile(file, tempDir)
		if err != nil {
			_ = os.RemoveAll(tempDir)
			return nil, goerr.Wrap(err, "failed to extract file", goerr.V("file", file.Name))
		}
		if size >= 0 {
			result.Files++
			result.Size += size
		}
	}

	result.Dir = archiveRoot(tempDir)

	ctxlog.From(ctx).Debug("Extracted source archive",
		"dir", result.Dir,
		"files", result.Files,
		"size", result.Size,
	)
	return result, nil
}

// extractFile writes one zip entry under destDir. Returns the number of
// bytes written, or -1 for directory entries.
func extractFile(file *zip.File, destDir string) (int64, error) {
	destPath := filepath.Join(destDir, file.Name)

	// Reject entries that would escape the destination directory
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(os.PathSeparator)) {
		return 0, goerr.New("invalid file path in zip", goerr.V("path", file.Name))
	}

	info := file.FileInfo()
	if info.IsDir() {
		if err := os.MkdirAll(destPath, info.Mode()); err != nil {
			return 0, goerr.Wrap(err, "failed to create directory")
		}
		return -1, nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, goerr.Wrap(err, "failed to create parent directory")
	}

	srcFile, err := file.Open()
	if err != nil {
		return 0, goerr.Wrap(err, "failed to open file in zip")
	}
	defer srcFile.Close()

	destFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return 0, goerr.Wrap(err, "failed to create file")
	}
	defer destFile.Close()

	size, err := io.Copy(destFile, srcFile)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to write file")
	}
	return size, nil
}

// archiveRoot unwraps the single top-level directory of an extracted
// archive, if there is one.
func archiveRoot(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || !entries[0].IsDir() {
		return dir
	}
	return filepath.Join(dir, entries[0].Name())
}

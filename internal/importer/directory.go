package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/skelly-dev/sigreg/internal/extract"
	"github.com/skelly-dev/sigreg/internal/fileutil"
	"github.com/skelly-dev/sigreg/internal/ignore"
)

type fileKind int

const (
	kindSkip fileKind = iota
	kindSource
	kindABI
)

func kindOf(path string) fileKind {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".sol"):
		return kindSource
	case strings.HasSuffix(name, ".dbg.json"):
		return kindSkip
	case strings.HasSuffix(name, ".abi"), strings.HasSuffix(name, ".json"):
		return kindABI
	default:
		return kindSkip
	}
}

// Issue is a non-fatal problem with one file of a directory import.
type Issue struct {
	File     string `json:"file"`
	Severity string `json:"severity"` // warning | error
	Message  string `json:"message"`
}

type FileResult struct {
	Path   string `json:"path"`
	Hash   string `json:"hash"`
	Result Result `json:"result"`
}

type DirectoryResult struct {
	Root   string       `json:"root"`
	Total  Result       `json:"total"`
	Files  []FileResult `json:"files"`
	Issues []Issue      `json:"issues"`
}

// ImportDirectory imports every .sol, .abi and .json file under root that the
// ignore rules keep. Unreadable files and JSON that is not an ABI become
// issues; storage failures abort the walk.
func (i *Importer) ImportDirectory(ctx context.Context, root string, ignoreRules []string) (DirectoryResult, error) {
	matcher := ignore.NewMatcher(ignoreRules)
	result := DirectoryResult{
		Root:   root,
		Files:  make([]FileResult, 0),
		Issues: make([]Issue, 0),
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		relPath := path
		if rel, relErr := filepath.Rel(root, path); relErr == nil {
			relPath = filepath.ToSlash(rel)
		}
		if err != nil {
			result.Issues = append(result.Issues, Issue{
				File:     relPath,
				Severity: "warning",
				Message:  fmt.Sprintf("walk error: %v", err),
			})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		if matcher.ShouldIgnore(relPath, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || kindOf(path) == kindSkip {
			return nil
		}

		document, err := os.ReadFile(path)
		if err != nil {
			result.Issues = append(result.Issues, Issue{File: relPath, Severity: "error", Message: err.Error()})
			return nil
		}
		fileResult, err := i.importDocument(ctx, path, document)
		result.Total.Add(fileResult)
		switch {
		case err == nil:
			result.Files = append(result.Files, FileResult{
				Path:   relPath,
				Hash:   fileutil.HashBytes(document),
				Result: fileResult,
			})
		case errors.Is(err, extract.ErrInvalidABI):
			result.Issues = append(result.Issues, Issue{File: relPath, Severity: "warning", Message: err.Error()})
		default:
			return fmt.Errorf("%s: %w", relPath, err)
		}
		return nil
	})

	sort.Slice(result.Files, func(a, b int) bool {
		return result.Files[a].Path < result.Files[b].Path
	})
	sort.Slice(result.Issues, func(a, b int) bool {
		if result.Issues[a].File == result.Issues[b].File {
			return result.Issues[a].Message < result.Issues[b].Message
		}
		return result.Issues[a].File < result.Issues[b].File
	})

	i.logger.Info("directory import finished",
		zap.String("root", root),
		zap.Int("files", len(result.Files)),
		zap.Int("issues", len(result.Issues)),
		zap.Int("processed", result.Total.NumProcessed),
		zap.Int("imported", result.Total.NumImported),
		zap.Int("duplicates", result.Total.NumDuplicates),
	)
	return result, walkErr
}

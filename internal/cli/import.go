package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/sigreg/internal/fileutil"
	"github.com/skelly-dev/sigreg/internal/ignore"
	"github.com/skelly-dev/sigreg/internal/importer"
)

// RunImport imports Solidity sources and ABI files. Directory arguments are
// walked with their .sigregignore rules.
func RunImport(cmd *cobra.Command, args []string) error {
	start := time.Now()
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	args = fileutil.DedupeStrings(args)
	imp := importer.New(e.reg, importer.WithLogger(e.logger))
	summary := ImportRunSummary{Mode: "import", Backend: e.cfg.Storage.Backend, Paths: args}

	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if !info.IsDir() {
			result, err := imp.ImportFile(cmd.Context(), path)
			summary.add(result)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			summary.Files++
			continue
		}

		rules, err := ignore.LoadRules(path)
		if err != nil {
			return err
		}
		dirResult, err := imp.ImportDirectory(cmd.Context(), path, rules)
		summary.add(dirResult.Total)
		summary.Files += len(dirResult.Files)
		summary.Issues = append(summary.Issues, dirResult.Issues...)
		if err != nil {
			return err
		}
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	return PrintImportSummary(e.out, summary, e.asJSON)
}

// RunImportABI treats every argument as an ABI document regardless of its
// extension.
func RunImportABI(cmd *cobra.Command, args []string) error {
	start := time.Now()
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	args = fileutil.DedupeStrings(args)
	imp := importer.New(e.reg, importer.WithLogger(e.logger))
	summary := ImportRunSummary{Mode: "import-abi", Backend: e.cfg.Storage.Backend, Paths: args}

	for _, path := range args {
		document, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		result, err := imp.ImportABI(cmd.Context(), document)
		summary.add(result)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		summary.Files++
	}

	summary.DurationMS = time.Since(start).Milliseconds()
	return PrintImportSummary(e.out, summary, e.asJSON)
}

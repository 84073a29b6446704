package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/sigreg/internal/fileutil"
	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/search"
)

func RunSearch(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	limit, err := OptionalIntFlag(cmd, "limit", 10)
	if err != nil {
		return err
	}

	results, err := search.NewSearcher(e.reg).Search(cmd.Context(), args[0], limit)
	if err != nil {
		return err
	}
	if e.asJSON {
		return fileutil.WriteJSON(e.out, results)
	}
	if len(results) == 0 {
		fmt.Fprintf(e.out, "no signatures match %q\n", args[0])
		return nil
	}
	records := make([]SignatureRecord, 0, len(results))
	for _, r := range results {
		records = append(records, newSignatureRecord(registry.Signature{ID: r.ID, TextSignature: r.TextSignature}))
	}
	return PrintSignatures(e.out, records, false)
}

func RunList(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	offset, err := OptionalIntFlag(cmd, "offset", 0)
	if err != nil {
		return err
	}
	limit, err := OptionalIntFlag(cmd, "limit", 0)
	if err != nil {
		return err
	}
	if offset < 0 || limit < 0 {
		return fmt.Errorf("--offset and --limit must not be negative")
	}

	sigs, err := e.reg.List(cmd.Context(), registry.ListOptions{Offset: offset, Limit: limit})
	if err != nil {
		return err
	}
	records := make([]SignatureRecord, 0, len(sigs))
	for _, sig := range sigs {
		records = append(records, newSignatureRecord(sig))
	}
	return PrintSignatures(e.out, records, e.asJSON)
}

// RunExport writes every signature as JSON Lines, to the given file or to
// stdout. An unchanged file is left untouched.
func RunExport(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	sigs, err := e.reg.List(cmd.Context(), registry.ListOptions{})
	if err != nil {
		return err
	}
	records := make([]SignatureRecord, 0, len(sigs))
	for _, sig := range sigs {
		records = append(records, newSignatureRecord(sig))
	}
	data, err := fileutil.EncodeJSONL(records)
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if len(args) == 0 {
		_, err = e.out.Write(data)
		return err
	}
	changed, err := fileutil.WriteIfChangedTracked(args[0], data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}
	if !e.asJSON {
		state := "unchanged"
		if changed {
			state = "written"
		}
		fmt.Fprintf(e.out, "exported %d signatures to %s (%s)\n", len(records), args[0], state)
		return nil
	}
	return fileutil.WriteJSON(e.out, map[string]any{
		"path":       args[0],
		"signatures": len(records),
		"changed":    changed,
	})
}

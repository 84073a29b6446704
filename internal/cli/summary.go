package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/skelly-dev/sigreg/internal/fileutil"
	"github.com/skelly-dev/sigreg/internal/importer"
	"github.com/skelly-dev/sigreg/internal/registry"
)

// SignatureRecord is the printed and exported form of a signature.
type SignatureRecord struct {
	ID            string `json:"id"`
	TextSignature string `json:"text_signature"`
	HexSignature  string `json:"hex_signature"`
	Created       *bool  `json:"created,omitempty"`
}

func newSignatureRecord(sig registry.Signature) SignatureRecord {
	return SignatureRecord{
		ID:            sig.ID,
		TextSignature: sig.TextSignature,
		HexSignature:  sig.HexSignature(),
	}
}

type ImportRunSummary struct {
	Mode          string           `json:"mode"`
	Backend       string           `json:"backend"`
	Paths         []string         `json:"paths"`
	Files         int              `json:"files"`
	NumProcessed  int              `json:"num_processed"`
	NumImported   int              `json:"num_imported"`
	NumDuplicates int              `json:"num_duplicates"`
	Unparseable   int              `json:"unparseable"`
	Issues        []importer.Issue `json:"issues,omitempty"`
	DurationMS    int64            `json:"duration_ms"`
}

func (s *ImportRunSummary) add(result importer.Result) {
	s.NumProcessed += result.NumProcessed
	s.NumImported += result.NumImported
	s.NumDuplicates += result.NumDuplicates
	s.Unparseable = s.NumProcessed - s.NumImported - s.NumDuplicates
}

func PrintImportSummary(w io.Writer, summary ImportRunSummary, asJSON bool) error {
	if asJSON {
		return fileutil.WriteJSON(w, summary)
	}

	fmt.Fprintf(w, "%s complete in %dms (backend: %s)\n", summary.Mode, summary.DurationMS, summary.Backend)
	fmt.Fprintf(w, "files: %d (%s)\n", summary.Files, SummarizePaths(summary.Paths, 5))
	fmt.Fprintf(w, "signatures: processed=%d imported=%d duplicates=%d unparseable=%d\n",
		summary.NumProcessed, summary.NumImported, summary.NumDuplicates, summary.Unparseable)
	if len(summary.Issues) > 0 {
		fmt.Fprintf(w, "issues (%d):\n", len(summary.Issues))
		for _, issue := range summary.Issues {
			fmt.Fprintf(w, "  %s [%s] %s\n", issue.File, issue.Severity, issue.Message)
		}
	}
	return nil
}

func PrintSignatures(w io.Writer, records []SignatureRecord, asJSON bool) error {
	if asJSON {
		return fileutil.WriteJSON(w, records)
	}
	for _, record := range records {
		line := fmt.Sprintf("%s %s", record.HexSignature, record.TextSignature)
		if record.Created != nil {
			if *record.Created {
				line += " (created)"
			} else {
				line += " (exists)"
			}
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}

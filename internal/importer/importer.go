// Package importer feeds whole documents through the registry: Solidity
// sources via the lexical extractor, ABI JSON via go-ethereum's ABI parser,
// and directory trees honouring .sigregignore.
package importer

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/skelly-dev/sigreg/internal/extract"
	"github.com/skelly-dev/sigreg/internal/registry"
)

// Result counts the candidates seen by one import. Candidates that were
// neither imported nor duplicates could not be parsed.
type Result struct {
	NumProcessed  int `json:"num_processed"`
	NumImported   int `json:"num_imported"`
	NumDuplicates int `json:"num_duplicates"`
}

func (r Result) Unparseable() int {
	return r.NumProcessed - r.NumImported - r.NumDuplicates
}

func (r *Result) Add(other Result) {
	r.NumProcessed += other.NumProcessed
	r.NumImported += other.NumImported
	r.NumDuplicates += other.NumDuplicates
}

func (r *Result) record(outcome registry.Outcome) {
	r.NumProcessed++
	switch outcome {
	case registry.OutcomeImported:
		r.NumImported++
	case registry.OutcomeDuplicate:
		r.NumDuplicates++
	}
}

type Importer struct {
	reg    *registry.Registry
	logger *zap.Logger
}

type Option func(*Importer)

func WithLogger(logger *zap.Logger) Option {
	return func(i *Importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

func New(reg *registry.Registry, opts ...Option) *Importer {
	i := &Importer{reg: reg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ImportSource extracts every function declaration from a Solidity document
// and imports each candidate. Invalid UTF-8 is replaced, never rejected.
// A storage failure stops the import and returns the counts so far.
func (i *Importer) ImportSource(ctx context.Context, document []byte) (Result, error) {
	text := strings.ToValidUTF8(string(document), "�")
	return i.importAll(ctx, extract.Functions(text))
}

func (i *Importer) ImportReader(ctx context.Context, r io.Reader) (Result, error) {
	document, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read source: %w", err)
	}
	return i.ImportSource(ctx, document)
}

// ImportABI imports every method of an ABI JSON document or compiler
// artifact. An undecodable document fails with extract.ErrInvalidABI.
func (i *Importer) ImportABI(ctx context.Context, document []byte) (Result, error) {
	sigs, err := extract.ABIFunctions(document)
	if err != nil {
		return Result{}, err
	}
	return i.importAll(ctx, slices.Values(sigs))
}

// ImportFile picks the ABI path for .abi and .json files and the source path
// for everything else.
func (i *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return i.importDocument(ctx, path, document)
}

func (i *Importer) importDocument(ctx context.Context, path string, document []byte) (Result, error) {
	if kindOf(path) == kindABI {
		return i.ImportABI(ctx, document)
	}
	return i.ImportSource(ctx, document)
}

func (i *Importer) importAll(ctx context.Context, candidates iter.Seq[string]) (Result, error) {
	var result Result
	for raw := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, _, err := i.reg.Classify(ctx, raw)
		if err != nil {
			return result, fmt.Errorf("import of %q failed: %w", raw, err)
		}
		result.record(outcome)
	}
	i.logger.Debug("import finished",
		zap.Int("processed", result.NumProcessed),
		zap.Int("imported", result.NumImported),
		zap.Int("duplicates", result.NumDuplicates),
	)
	return result, nil
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skelly-dev/sigreg/internal/abitype"
	"github.com/skelly-dev/sigreg/internal/fileutil"
	"github.com/skelly-dev/sigreg/internal/registry"
	"github.com/skelly-dev/sigreg/internal/selector"
)

// RunAdd imports each argument as one signature. Every argument is tried;
// the command fails if any of them was rejected.
func RunAdd(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	records := make([]SignatureRecord, 0, len(args))
	var rejected []error
	for _, raw := range args {
		sig, created, err := e.reg.ImportOne(cmd.Context(), raw)
		if err != nil {
			if errors.Is(err, registry.ErrInvalidSignature) {
				rejected = append(rejected, err)
				continue
			}
			return err
		}
		record := newSignatureRecord(sig)
		record.Created = &created
		records = append(records, record)
	}

	if err := PrintSignatures(e.out, records, e.asJSON); err != nil {
		return err
	}
	if len(rejected) > 0 {
		return fmt.Errorf("%d of %d signatures rejected: %w", len(rejected), len(args), errors.Join(rejected...))
	}
	return nil
}

type canonicalOutput struct {
	Input         string   `json:"input"`
	TextSignature string   `json:"text_signature"`
	HexSignature  string   `json:"hex_signature,omitempty"`
	Name          string   `json:"name"`
	Inputs        []string `json:"inputs"`
}

// RunNormalize prints the canonical form without touching storage.
func RunNormalize(cmd *cobra.Command, args []string) error {
	return printCanonical(cmd, args[0], false)
}

// RunHash prints the canonical form and its selector without touching
// storage.
func RunHash(cmd *cobra.Command, args []string) error {
	return printCanonical(cmd, args[0], true)
}

func printCanonical(cmd *cobra.Command, raw string, withSelector bool) error {
	asJSON, err := OptionalBoolFlag(cmd, "json")
	if err != nil {
		return err
	}
	canonical, err := registry.Canonicalize(raw)
	if err != nil {
		return err
	}

	out := canonicalOutput{Input: raw, TextSignature: canonical}
	if withSelector {
		out.HexSignature = selector.Compute(canonical).Hex()
	}
	if asJSON {
		parsed, err := abitype.ParseSignature(canonical)
		if err != nil {
			return err
		}
		out.Name = parsed.Name
		out.Inputs = make([]string, 0, len(parsed.Inputs))
		for _, input := range parsed.Inputs {
			out.Inputs = append(out.Inputs, input.String())
		}
		return fileutil.WriteJSON(cmd.OutOrStdout(), out)
	}
	if withSelector {
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", out.HexSignature, canonical)
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), canonical)
	return err
}

// RunLookup resolves a 0x selector to every text sharing it, or a text
// signature to its stored record.
func RunLookup(cmd *cobra.Command, args []string) error {
	e, err := openEnv(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	query := args[0]
	var matches []registry.Signature
	if selector.IsHex(query) {
		sel, err := selector.ParseHex(query)
		if err != nil {
			return err
		}
		matches, err = e.reg.FindBySelector(cmd.Context(), sel)
		if err != nil {
			return err
		}
	} else {
		sig, found, err := e.reg.Lookup(cmd.Context(), query)
		if err != nil {
			return err
		}
		if found {
			matches = append(matches, sig)
		}
	}
	if len(matches) == 0 {
		return fmt.Errorf("no signature matches %q", query)
	}

	records := make([]SignatureRecord, 0, len(matches))
	for _, sig := range matches {
		records = append(records, newSignatureRecord(sig))
	}
	return PrintSignatures(e.out, records, e.asJSON)
}

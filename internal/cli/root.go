package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sigreg",
		Short: "Registry of Ethereum function signatures and their 4-byte selectors",
		Long: `sigreg canonicalizes Solidity function signatures, computes their
Keccak-256 selectors and stores each canonical text exactly once.

Signatures can be added one by one, imported from Solidity sources and ABI
files, looked up by selector and served over HTTP.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", "", "Config file (default $SIGREG_CONFIG or .sigreg/config.toml)")
	rootCmd.PersistentFlags().Bool("json", false, "Print machine-readable output")

	// Registry Commands
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default .sigreg/config.toml and .sigregignore",
		Args:  cobra.NoArgs,
		RunE:  RunInit,
	}

	addCmd := &cobra.Command{
		Use:   "add <signature>...",
		Short: "Canonicalize and store one or more signatures",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunAdd,
	}

	importCmd := &cobra.Command{
		Use:   "import <path>...",
		Short: "Import every function declared in Solidity files, ABI files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunImport,
	}

	importABICmd := &cobra.Command{
		Use:   "import-abi <file>...",
		Short: "Import every method of ABI JSON documents or compiler artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunImportABI,
	}

	// Inspect Commands
	normalizeCmd := &cobra.Command{
		Use:   "normalize <signature>",
		Short: "Print the canonical form of a signature",
		Args:  cobra.ExactArgs(1),
		RunE:  RunNormalize,
	}

	hashCmd := &cobra.Command{
		Use:   "hash <signature>",
		Short: "Print the 4-byte selector of a signature",
		Args:  cobra.ExactArgs(1),
		RunE:  RunHash,
	}

	lookupCmd := &cobra.Command{
		Use:   "lookup <0xselector|signature>",
		Short: "Find stored signatures by selector or text",
		Args:  cobra.ExactArgs(1),
		RunE:  RunLookup,
	}

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Rank stored signatures against a free-text query",
		Args:  cobra.ExactArgs(1),
		RunE:  RunSearch,
	}
	searchCmd.Flags().Int("limit", 10, "Maximum number of results")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored signatures ordered by text",
		Args:  cobra.NoArgs,
		RunE:  RunList,
	}
	listCmd.Flags().Int("offset", 0, "Number of signatures to skip")
	listCmd.Flags().Int("limit", 0, "Maximum number of signatures (0 for all)")

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export every signature as JSON Lines",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunExport,
	}

	installHookCmd := &cobra.Command{
		Use:   "install-hook",
		Short: "Install a git pre-commit hook that imports staged .sol and .abi files",
		Args:  cobra.NoArgs,
		RunE:  RunInstallHook,
	}

	// Server Commands
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry over HTTP",
		Args:  cobra.NoArgs,
		RunE:  RunServe,
	}
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sigreg %s\n", version)
		},
	}

	rootCmd.AddCommand(
		initCmd,
		addCmd,
		importCmd,
		importABICmd,
		normalizeCmd,
		hashCmd,
		lookupCmd,
		searchCmd,
		listCmd,
		exportCmd,
		installHookCmd,
		serveCmd,
		versionCmd,
	)

	return rootCmd
}

package cli

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/skelly-dev/sigreg/internal/config"
	"github.com/skelly-dev/sigreg/internal/fileutil"
	"github.com/skelly-dev/sigreg/internal/ignore"
)

const ignoreTemplate = `# Paths skipped by "sigreg import <dir>" (gitignore syntax).
# Defaults already exclude .git/, node_modules/, lib/forge-std/, cache/ and out/.
test/
*.t.sol
`

// RunInit writes a default config file and a .sigregignore template into
// the working directory. Existing files are left alone.
func RunInit(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveWorkingDirectory()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config.Default()); err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}

	configPath := filepath.Join(rootPath, config.DefaultPath)
	if err := fileutil.WriteIfMissing(configPath, buf.Bytes(), 0644); err != nil {
		return err
	}
	ignorePath := filepath.Join(rootPath, ignore.FileName)
	if err := fileutil.WriteIfMissing(ignorePath, []byte(ignoreTemplate), 0644); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "config: %s\nignore: %s\n", configPath, ignorePath)
	return nil
}

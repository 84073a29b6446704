package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// newTestRegistry writes a filestore config into a temp directory and
// returns the directory and the config path.
func newTestRegistry(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	configPath := filepath.Join(root, "sigreg.toml")
	mustWriteFile(t, configPath, fmt.Sprintf(`[storage]
backend = "filestore"
path = %q

[log]
level = "error"
`, filepath.Join(root, "data", "registry.json")))
	return root, configPath
}

func runCommand(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, configPath string, args ...string) string {
	t.Helper()
	out, err := runCommand(t, configPath, args...)
	if err != nil {
		t.Fatalf("sigreg %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestAddReportsCreatedThenExists(t *testing.T) {
	_, configPath := newTestRegistry(t)

	out := mustRun(t, configPath, "add", "transfer(address, uint)")
	if out != "0xa9059cbb transfer(address,uint256) (created)\n" {
		t.Fatalf("unexpected add output: %q", out)
	}

	out = mustRun(t, configPath, "add", "transfer(address,uint256)")
	if out != "0xa9059cbb transfer(address,uint256) (exists)\n" {
		t.Fatalf("unexpected second add output: %q", out)
	}
}

func TestAddRejectsInvalidButKeepsValid(t *testing.T) {
	_, configPath := newTestRegistry(t)

	out, err := runCommand(t, configPath, "add", "approve(address,uint256)", "not a signature")
	if err == nil {
		t.Fatalf("expected add to fail on invalid input")
	}
	if !strings.Contains(err.Error(), "1 of 2 signatures rejected") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "approve(address,uint256) (created)") {
		t.Fatalf("expected valid signature to be stored, got %q", out)
	}

	lookup := mustRun(t, configPath, "lookup", "0x095ea7b3")
	if lookup != "0x095ea7b3 approve(address,uint256)\n" {
		t.Fatalf("unexpected lookup output: %q", lookup)
	}
}

func TestNormalizeAndHashDoNotTouchStorage(t *testing.T) {
	root, configPath := newTestRegistry(t)

	out := mustRun(t, configPath, "normalize", "balanceOf( address )")
	if out != "balanceOf(address)\n" {
		t.Fatalf("unexpected normalize output: %q", out)
	}

	out = mustRun(t, configPath, "--json", "hash", "transfer(address,uint)")
	var parsed canonicalOutput
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("failed to parse hash JSON: %v\n%s", err, out)
	}
	if parsed.TextSignature != "transfer(address,uint256)" || parsed.HexSignature != "0xa9059cbb" {
		t.Fatalf("unexpected hash result: %+v", parsed)
	}
	if parsed.Name != "transfer" || len(parsed.Inputs) != 2 || parsed.Inputs[0] != "address" || parsed.Inputs[1] != "uint256" {
		t.Fatalf("unexpected parsed inputs: %+v", parsed)
	}

	out = mustRun(t, configPath, "--json", "normalize", "f((uint,address)[2], bytes memory data)")
	parsed = canonicalOutput{}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("failed to parse normalize JSON: %v\n%s", err, out)
	}
	if parsed.TextSignature != "f((uint256,address)[2],bytes)" || len(parsed.Inputs) != 2 || parsed.Inputs[0] != "(uint256,address)[2]" {
		t.Fatalf("unexpected normalize result: %+v", parsed)
	}

	assertNotExists(t, filepath.Join(root, "data", "registry.json"))
}

func TestLookupMissingSelectorFails(t *testing.T) {
	_, configPath := newTestRegistry(t)

	if _, err := runCommand(t, configPath, "lookup", "0xdeadbeef"); err == nil {
		t.Fatalf("expected lookup of an unknown selector to fail")
	}
}

func TestImportDirectoryListSearchExport(t *testing.T) {
	root, configPath := newTestRegistry(t)
	project := filepath.Join(root, "project")
	mustWriteFile(t, filepath.Join(project, "src", "Token.sol"), `pragma solidity ^0.8.0;

contract Token {
    function transfer(address to, uint amount) public returns (bool) {}
    function approve(address spender, uint256 amount) external returns (bool) {}
}
`)
	mustWriteFile(t, filepath.Join(project, "node_modules", "dep", "Dep.sol"), `contract Dep {
    function ignored(uint256 x) public {}
}
`)
	mustWriteFile(t, filepath.Join(project, "abi", "Vault.abi"), `[
  {"type":"function","name":"deposit","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"}],"outputs":[]},
  {"type":"event","name":"Deposit","inputs":[]}
]`)

	out := mustRun(t, configPath, "--json", "import", project)
	var summary ImportRunSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("failed to parse import summary: %v\n%s", err, out)
	}
	if summary.Files != 2 {
		t.Fatalf("expected 2 files imported, got %d", summary.Files)
	}
	if summary.NumProcessed != 3 || summary.NumImported != 3 || summary.NumDuplicates != 0 {
		t.Fatalf("unexpected import counts: %+v", summary)
	}

	out = mustRun(t, configPath, "--json", "import", project)
	summary = ImportRunSummary{}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("failed to parse second import summary: %v", err)
	}
	if summary.NumImported != 0 || summary.NumDuplicates != 3 {
		t.Fatalf("expected re-import to be all duplicates, got %+v", summary)
	}

	list := mustRun(t, configPath, "list")
	want := "0x095ea7b3 approve(address,uint256)\n" +
		"0x6e553f65 deposit(uint256,address)\n" +
		"0xa9059cbb transfer(address,uint256)\n"
	if list != want {
		t.Fatalf("unexpected list output:\n%s", list)
	}

	page := mustRun(t, configPath, "list", "--offset", "1", "--limit", "1")
	if page != "0x6e553f65 deposit(uint256,address)\n" {
		t.Fatalf("unexpected page output: %q", page)
	}

	found := mustRun(t, configPath, "search", "deposit")
	if !strings.HasPrefix(found, "0x6e553f65 deposit(uint256,address)\n") {
		t.Fatalf("unexpected search output: %q", found)
	}

	exportPath := filepath.Join(root, "export.jsonl")
	out = mustRun(t, configPath, "export", exportPath)
	if !strings.Contains(out, "exported 3 signatures") || !strings.Contains(out, "(written)") {
		t.Fatalf("unexpected export output: %q", out)
	}
	out = mustRun(t, configPath, "export", exportPath)
	if !strings.Contains(out, "(unchanged)") {
		t.Fatalf("expected second export to be unchanged, got %q", out)
	}

	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 JSONL lines, got %d", len(lines))
	}
	var first SignatureRecord
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("failed to parse export line: %v", err)
	}
	if first.TextSignature != "approve(address,uint256)" || first.HexSignature != "0x095ea7b3" || first.ID == "" {
		t.Fatalf("unexpected export record: %+v", first)
	}
}

func TestImportABIRejectsInvalidDocument(t *testing.T) {
	root, configPath := newTestRegistry(t)
	path := filepath.Join(root, "broken.json")
	mustWriteFile(t, path, `{"not":"an abi"}`)

	if _, err := runCommand(t, configPath, "import-abi", path); err == nil {
		t.Fatalf("expected import-abi to fail on an invalid document")
	}
}

func TestListRejectsNegativePaging(t *testing.T) {
	_, configPath := newTestRegistry(t)

	if _, err := runCommand(t, configPath, "list", "--offset", "-1"); err == nil {
		t.Fatalf("expected negative offset to fail")
	}
}

func TestInitWritesConfigAndIgnoreIdempotently(t *testing.T) {
	root := t.TempDir()

	withWorkingDir(t, root, func() {
		cmd := &cobra.Command{}
		var out bytes.Buffer
		cmd.SetOut(&out)
		if err := RunInit(cmd, nil); err != nil {
			t.Fatalf("RunInit failed: %v", err)
		}
		configPath := filepath.Join(root, ".sigreg", "config.toml")
		ignorePath := filepath.Join(root, ".sigregignore")
		assertExists(t, configPath)
		assertExists(t, ignorePath)

		mustWriteFile(t, ignorePath, "custom/\n")
		if err := RunInit(cmd, nil); err != nil {
			t.Fatalf("second RunInit failed: %v", err)
		}
		data, err := os.ReadFile(ignorePath)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "custom/\n" {
			t.Fatalf("expected existing ignore file to be kept, got %q", data)
		}

		configData, err := os.ReadFile(configPath)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(configData), `backend = "filestore"`) {
			t.Fatalf("expected default backend in config, got:\n%s", configData)
		}
	})
}

func TestUnknownBackendFails(t *testing.T) {
	root := t.TempDir()
	configPath := filepath.Join(root, "sigreg.toml")
	mustWriteFile(t, configPath, "[storage]\nbackend = \"sqlite\"\n")

	if _, err := runCommand(t, configPath, "list"); err == nil {
		t.Fatalf("expected an unknown backend to be rejected")
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := NewRootCommand("1.2.3")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if out.String() != "sigreg 1.2.3\n" {
		t.Fatalf("unexpected version output: %q", out.String())
	}
}

func TestOptionalFlagsFallBack(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().Int("limit", 10, "")

	if v, err := OptionalIntFlag(cmd, "missing", 7); err != nil || v != 7 {
		t.Fatalf("expected fallback for missing flag, got %d, %v", v, err)
	}
	mustSetFlag(t, cmd, "limit", "3")
	if v, err := OptionalIntFlag(cmd, "limit", 10); err != nil || v != 3 {
		t.Fatalf("expected flag value, got %d, %v", v, err)
	}
	if v, err := OptionalBoolFlag(cmd, "json"); err != nil || v {
		t.Fatalf("expected false for missing bool flag, got %v, %v", v, err)
	}
}

func TestSummarizePaths(t *testing.T) {
	if got := SummarizePaths([]string{"a", "b"}, 5); got != "a, b" {
		t.Fatalf("unexpected summary: %q", got)
	}
	if got := SummarizePaths([]string{"a", "b", "c"}, 2); got != "a, b ... (+1 more)" {
		t.Fatalf("unexpected summary: %q", got)
	}
}

func withWorkingDir(t *testing.T, dir string, fn func()) {
	t.Helper()

	originalWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get cwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to chdir: %v", err)
	}
	defer func() {
		_ = os.Chdir(originalWD)
	}()

	fn()
}

func assertExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

func assertNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("expected %s to not exist", path)
	} else if !os.IsNotExist(err) {
		t.Fatalf("expected %s to be absent: %v", path, err)
	}
}

func mustSetFlag(t *testing.T, cmd *cobra.Command, key, value string) {
	t.Helper()
	if err := cmd.Flags().Set(key, value); err != nil {
		t.Fatalf("failed to set --%s=%s: %v", key, value, err)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

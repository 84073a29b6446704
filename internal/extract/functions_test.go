package extract

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const tokenSource = `// SPDX-License-Identifier: MIT
pragma solidity ^0.8.0;

/* function hidden(uint a) public; */
contract Token {
    string constant URL = "https://example.com/function fake(uint)";

    // function commented(address) external;
    function transfer(address to, uint256 amount)
        public
        returns (bool)
    {
        return true;
    }

    function balanceOf(address owner) external view returns (uint) { return 0; }

    function batch(
        address[] calldata recipients,
        (uint, bytes32)[] memory data
    ) external {}

    function() external payable {}

    constructor(uint supply) {}

    function noop() internal pure {}
}
`

func TestFunctionsExtractsDeclarations(t *testing.T) {
	got := Collect(Functions(tokenSource))
	want := []string{
		"transfer(address to, uint256 amount)",
		"balanceOf(address owner)",
		"batch(\n        address[] calldata recipients,\n        (uint, bytes32)[] memory data\n    )",
		"noop()",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFunctionsIsRestartable(t *testing.T) {
	seq := Functions(tokenSource)
	first := Collect(seq)
	second := Collect(seq)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results on second iteration, got %q then %q", first, second)
	}
}

func TestFunctionsStopsEarly(t *testing.T) {
	count := 0
	for range Functions(tokenSource) {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("expected to stop after first candidate, got %d", count)
	}
}

func TestFunctionsSkipsBrokenDeclarations(t *testing.T) {
	source := `
function broken(uint a { }
function ok(uint a) public {}
function dangling(
`
	got := Collect(Functions(source))
	want := []string{"ok(uint a)"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFunctionsKeepsDuplicatesAndUnknownTypes(t *testing.T) {
	source := `
function a(uint x) {}
function a(uint y) {}
function b(MyStruct s) {}
`
	got := Collect(Functions(source))
	want := []string{"a(uint x)", "a(uint y)", "b(MyStruct s)"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestScrubBlanksCommentsAndLiteralsPreservingLines(t *testing.T) {
	source := "a // one\n/* two\nthree */ b \"//gone\""
	got := scrub(source)
	want := "a" + strings.Repeat(" ", 7) + "\n" + strings.Repeat(" ", 6) + "\n" + strings.Repeat(" ", 9) + "b \"" + strings.Repeat(" ", 7)
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestABIFunctions(t *testing.T) {
	document := []byte(`[
		{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]},
		{"type":"function","name":"setPair","inputs":[{"name":"p","type":"tuple","components":[{"name":"a","type":"uint256"},{"name":"b","type":"address"}]}],"outputs":[]},
		{"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true}]}
	]`)

	got, err := ABIFunctions(document)
	if err != nil {
		t.Fatalf("ABIFunctions failed: %v", err)
	}
	want := []string{"setPair((uint256,address))", "transfer(address,uint256)"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestABIFunctionsAcceptsArtifact(t *testing.T) {
	document := []byte(`{"contractName":"T","abi":[{"type":"function","name":"totalSupply","inputs":[],"outputs":[{"type":"uint256"}]}]}`)

	got, err := ABIFunctions(document)
	if err != nil {
		t.Fatalf("ABIFunctions failed: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"totalSupply()"}) {
		t.Fatalf("unexpected signatures %q", got)
	}
}

func TestABIFunctionsRejectsGarbage(t *testing.T) {
	for _, doc := range []string{"not json", `{"name":"x"}`, `[{"type":"function","name":"f","inputs":[{"type":"foo"}]}]`} {
		if _, err := ABIFunctions([]byte(doc)); !errors.Is(err, ErrInvalidABI) {
			t.Fatalf("document %q: expected ErrInvalidABI, got %v", doc, err)
		}
	}
}

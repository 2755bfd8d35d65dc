package interp_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/wisplang/wisp/interp"
	"github.com/wisplang/wisp/lexer"
	"github.com/wisplang/wisp/stdlib"
)

// run lexes, parses, and evaluates src against a fresh interpreter with the
// standard library installed, as the end-to-end scenarios in the language
// overview describe.
func run(t *testing.T, src string) (interp.Value, error) {
	t.Helper()
	ip := interp.New(interp.Options{})
	stdlib.Install(ip)
	return ip.Eval(src)
}

func TestGoldenScripts(t *testing.T) {
	data, err := os.ReadFile("../testdata/eval_cases.txtar")
	require.NoError(t, err)
	archive := txtar.Parse(data)

	scripts := map[string][]byte{}
	wants := map[string][]byte{}
	for _, f := range archive.Files {
		switch {
		case strings.HasSuffix(f.Name, ".wisp"):
			scripts[strings.TrimSuffix(f.Name, ".wisp")] = f.Data
		case strings.HasSuffix(f.Name, ".want"):
			wants[strings.TrimSuffix(f.Name, ".want")] = f.Data
		}
	}
	require.NotEmpty(t, scripts)

	for name, src := range scripts {
		name, src := name, src
		t.Run(name, func(t *testing.T) {
			want, ok := wants[name]
			require.True(t, ok, "missing .want section for %s", name)
			v, err := run(t, string(src))
			require.NoError(t, err)
			require.Equal(t, strings.TrimSpace(string(want)), v.ToString())
		})
	}
}

func TestLexErrorReported(t *testing.T) {
	_, err := lexer.Tokenize("1 @ 2")
	require.Error(t, err)
}

func TestParseErrorIsFatalOnBadAssignTarget(t *testing.T) {
	_, err := run(t, "1 + 1 = 2")
	require.Error(t, err)
}

func TestWhileNonBooleanConditionIsFatal(t *testing.T) {
	_, err := run(t, "while (1) { 1 }")
	require.Error(t, err)
}

func TestIndexWithUnsupportedIndexKindIsFatal(t *testing.T) {
	_, err := run(t, "[1,2,3][true]")
	require.Error(t, err)

	_, err = run(t, `"abc"["x"]`)
	require.Error(t, err)
}

func TestDivideAlwaysYieldsFloat(t *testing.T) {
	v, err := run(t, "4 / 2")
	require.NoError(t, err)
	require.Equal(t, interp.KindFloat, v.Kind)
	require.Equal(t, "2", v.ToString())
}

func TestToBooleanParseFailureYieldsNull(t *testing.T) {
	v, err := run(t, `"not a bool".to_boolean()`)
	require.NoError(t, err)
	require.Equal(t, interp.KindNull, v.Kind)
}

func TestEvalSeesCallerGlobals(t *testing.T) {
	v, err := run(t, `x = 1; eval("x = x + 1"); x`)
	require.NoError(t, err)
	require.Equal(t, "2", v.ToString())
}

func TestReturnFromNestedForInsideFunction(t *testing.T) {
	v, err := run(t, `
f = function() {
  for (i in 0..10) {
    if (i == 3) { return i }
  };
  -1
};
f()
`)
	require.NoError(t, err)
	require.Equal(t, "3", v.ToString())
}

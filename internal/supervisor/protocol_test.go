package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseControlLine(t *testing.T) {
	verb, payload, ok := parseControlLine("exec:/bin/echo hello")
	require.True(t, ok)
	require.Equal(t, "exec", verb)
	require.Equal(t, "/bin/echo hello", payload)

	_, _, ok = parseControlLine("no colon here")
	require.False(t, ok)

	verb, payload, ok = parseControlLine("print:")
	require.True(t, ok)
	require.Equal(t, "print", verb)
	require.Equal(t, "", payload)
}

func TestExecArgvCollapsesWhitespace(t *testing.T) {
	require.Equal(t, []string{"/bin/echo", "hello", "world"}, execArgv("  /bin/echo   hello world  "))
	require.Empty(t, execArgv(""))
	require.Empty(t, execArgv("   "))
}

package diagnostics

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDumpErrChainWalksEveryWrappedLayer(t *testing.T) {
	root := errors.New("permission denied")
	wrapped := fmt.Errorf("open stdout sink: %w", root)

	var buf bytes.Buffer
	DumpErrChain(&buf, wrapped)

	out := buf.String()
	require.Contains(t, out, "open stdout sink: permission denied")
	require.Contains(t, out, "[1] *errors.errorString: permission denied")
}

func TestDumpErrChainHandlesNil(t *testing.T) {
	var buf bytes.Buffer
	DumpErrChain(&buf, nil)
	require.Equal(t, "<nil>\n", buf.String())
}

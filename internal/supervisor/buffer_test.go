package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLineBufferDrainLinesSplitsCompleteRecords(t *testing.T) {
	buf := newLineBuffer(64)
	buf.extend(copy(buf.tail(), "exec:/bin/true\nprint:hi\nparti"))

	var got []string
	buf.drainLines(func(line []byte) {
		got = append(got, string(line))
	}, func(int) {
		t.Fatal("unexpected overlong callback")
	})

	require.Equal(t, []string{"exec:/bin/true", "print:hi"}, got)
	require.Equal(t, "parti", string(buf.bytes[:buf.used]))
}

func TestLineBufferDrainLinesCompactsRemainderToOffsetZero(t *testing.T) {
	buf := newLineBuffer(16)
	buf.extend(copy(buf.tail(), "a\nbcdefgh"))

	var got []string
	buf.drainLines(func(line []byte) { got = append(got, string(line)) }, nil)

	require.Equal(t, []string{"a"}, got)
	require.Equal(t, "bcdefgh", string(buf.bytes[:buf.used]))
	require.Equal(t, 16-len("bcdefgh"), buf.free())
}

func TestLineBufferOverlongLineIsDiscardedAndReset(t *testing.T) {
	buf := newLineBuffer(8)
	buf.extend(copy(buf.tail(), "abcdefgh")) // fills capacity, no newline

	var discarded int
	var sawLine bool
	buf.drainLines(func([]byte) { sawLine = true }, func(n int) { discarded = n })

	require.False(t, sawLine)
	require.Equal(t, 8, discarded)
	require.Equal(t, 0, buf.used)
	require.Equal(t, buf.capacity(), buf.free())
}

func TestLineBufferTruncateDropsBufferedBytesOnly(t *testing.T) {
	buf := newLineBuffer(32)
	buf.extend(copy(buf.tail(), "whatever was here"))
	buf.truncate()

	require.Equal(t, 0, buf.used)
	require.Equal(t, 32, buf.capacity())
	require.Equal(t, 32, buf.free())
}

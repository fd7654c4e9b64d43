package supervisor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunTableInsertAndCapacity(t *testing.T) {
	tbl := newRunTable(2)
	require.Equal(t, 2, tbl.capacity())
	require.Equal(t, 0, tbl.Len())

	require.NoError(t, tbl.insert(&Run{PID: 1}))
	require.NoError(t, tbl.insert(&Run{PID: 2}))
	require.Equal(t, 2, tbl.Len())

	err := tbl.insert(&Run{PID: 3})
	require.ErrorIs(t, err, ErrTableFull)
	require.Equal(t, 2, tbl.Len())
}

func TestRunTableByPID(t *testing.T) {
	tbl := newRunTable(4)
	a := &Run{PID: 11}
	b := &Run{PID: 22}
	require.NoError(t, tbl.insert(a))
	require.NoError(t, tbl.insert(b))

	require.Same(t, a, tbl.byPID(11))
	require.Same(t, b, tbl.byPID(22))
	require.Nil(t, tbl.byPID(99))
}

func TestRunTableRemoveByPIDCompactsDensely(t *testing.T) {
	tbl := newRunTable(4)
	a, b, c := &Run{PID: 1}, &Run{PID: 2}, &Run{PID: 3}
	require.NoError(t, tbl.insert(a))
	require.NoError(t, tbl.insert(b))
	require.NoError(t, tbl.insert(c))

	removed, ok := tbl.removeByPID(2)
	require.True(t, ok)
	require.Same(t, b, removed)
	require.Equal(t, 2, tbl.Len())

	live := tbl.Live()
	require.Len(t, live, 2)
	require.Same(t, a, live[0])
	require.Same(t, c, live[1])

	_, ok = tbl.removeByPID(2)
	require.False(t, ok)
}

// Package diagnostics provides failure-dump helpers for tests, for when an
// assertion fails and a human needs the full shape of an error chain, not
// just its Error() string.
package diagnostics

import (
	"errors"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
)

// DumpErrChain walks err's Unwrap chain, writing each layer's type, message,
// and full field dump (via spew) to w. The supervisor package's tests do not
// call it; only this package's own tests exercise it.
func DumpErrChain(w io.Writer, err error) {
	if err == nil {
		fmt.Fprintln(w, "<nil>")
		return
	}
	for i := 0; err != nil; err = errors.Unwrap(err) {
		fmt.Fprintf(w, "[%d] %T: %v\n", i, err, err)
		spew.Fdump(w, err)
		i++
	}
}

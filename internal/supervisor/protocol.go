package supervisor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// parseControlLine splits a line of the control child's stdout into its
// verb and payload: the verb is the prefix up to, and not including, the
// first ':'. ok is false when no ':' is present.
func parseControlLine(line string) (verb, payload string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	return line[:idx], line[idx+1:], true
}

// execArgv tokenizes an exec: payload: split on whitespace, collapsing runs
// of spaces and discarding any leading/trailing empty tokens. strings.Fields
// already has exactly this behavior.
func execArgv(payload string) []string {
	return strings.Fields(payload)
}

// dispatchControlLine implements the recognized-verb table: exec spawns a
// job, print echoes to the supervisor's own stdout. A missing ':' or an
// unrecognized verb is logged and ignored; the parser holds no state
// between records.
func (s *Supervisor) dispatchControlLine(line string) {
	verb, payload, ok := parseControlLine(line)
	if !ok {
		s.log.Warn("unrecognized control command", zap.String("raw", line), zap.Error(ErrMalformedLine))
		return
	}

	switch verb {
	case "exec":
		argv := execArgv(payload)
		if len(argv) == 0 {
			s.log.Warn("exec: empty command line", zap.String("payload", payload))
			return
		}
		if _, err := s.spawnJob(argv); err != nil {
			s.log.Warn("exec: spawn failed", zap.String("cmd", payload), zap.Error(err))
		}
	case "print":
		fmt.Fprintln(s.stdout, payload)
	default:
		s.log.Warn("unknown control verb", zap.String("verb", verb), zap.String("payload", payload), zap.Error(ErrMalformedLine))
	}
}

//go:build linux

package supervisor

import "golang.org/x/sys/unix"

// clampMaxRunToRlimit lowers want to the process's open-file soft limit,
// leaving headroom for the supervisor's own stdio, log file, and ledger
// fds. Each run consumes two fds (stdout, stderr) plus up to three more for
// its sink files and index, so the conversion is conservative on purpose.
func clampMaxRunToRlimit(want int) int {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return want
	}

	const reserve = 16
	const fdsPerRun = 5
	budget := int(rlim.Cur) - reserve
	if budget <= 0 {
		return 1
	}

	max := budget / fdsPerRun
	if max < 1 {
		max = 1
	}
	if want > max {
		return max
	}
	return want
}

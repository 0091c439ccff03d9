// Package stacktrace trims runtime stacks down to this module's own frames.
package stacktrace

import "strings"

const marker = "/internal/"

// InternalPaths extracts "internal/<pkg>/<file>.go:<line>" frames from a debug.Stack dump.
func InternalPaths(stack []byte) []string {
	var paths []string
	for line := range strings.SplitSeq(string(stack), "\n") {
		line = strings.TrimSpace(line)
		at := strings.Index(line, marker)
		if at == -1 {
			continue
		}
		ext := strings.Index(line, ".go:")
		if ext == -1 || ext < at {
			continue
		}

		frame := line[at+1:]
		if sp := strings.IndexByte(frame, ' '); sp != -1 {
			frame = frame[:sp]
		}
		paths = append(paths, frame)
	}
	return paths
}

package config

import "strings"

// splitPositional splits `<watched-path> <command> [command-args...]`.
func splitPositional(args []string) (string, string, []string) {
	watchPath, command := "", ""
	rest := []string{}

	if len(args) > 0 {
		watchPath = args[0]
	}
	if len(args) > 1 {
		command = args[1]
	}
	if len(args) > 2 {
		rest = append(rest, args[2:]...)
	}

	return watchPath, command, rest
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

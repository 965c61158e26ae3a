package tui

import (
	"fmt"
	"strconv"
	"strings"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ParseTranslateArgs parses "<message-id> [lang]". An empty lang means the
// configured default.
func ParseTranslateArgs(args string) (int64, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, "", fmt.Errorf("usage: tr <message-id> [lang]")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(fields[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", fmt.Errorf("invalid message id %q", fields[0])
	}
	lang := ""
	if len(fields) == 2 {
		lang = strings.ToLower(fields[1])
	}
	return id, lang, nil
}

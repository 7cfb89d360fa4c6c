package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/tictactoe-arena/internal/apperror"
)

type CommandType string

const (
	CommandJoin  CommandType = "JOIN"
	CommandMove  CommandType = "MOVE"
	CommandLeave CommandType = "LEAVE"
	CommandChat  CommandType = "CHAT"

	// keyword sent by the legacy desktop client instead of LEAVE
	legacyDisconnect = "DISCONNECT"
)

const MaxNameLength = 32

// Command is one decoded inbound line.
type Command struct {
	Type CommandType
	Name string
	Cell int
	Text string
}

// ParseCommand decodes a single command line. Keywords are case-insensitive.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, fmt.Errorf("%w: empty line", apperror.ErrInvalidCommand)
	}

	keyword, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToUpper(keyword) {
	case string(CommandJoin):
		if err := validateName(rest); err != nil {
			return Command{}, err
		}
		return Command{Type: CommandJoin, Name: rest}, nil

	case string(CommandMove):
		cell, err := strconv.Atoi(rest)
		if err != nil {
			return Command{}, fmt.Errorf("%w: cell %q is not a number", apperror.ErrInvalidCommand, rest)
		}
		return Command{Type: CommandMove, Cell: cell}, nil

	case string(CommandLeave), legacyDisconnect:
		return Command{Type: CommandLeave}, nil

	case string(CommandChat):
		if rest == "" {
			return Command{}, fmt.Errorf("%w: empty chat message", apperror.ErrInvalidCommand)
		}
		return Command{Type: CommandChat, Text: rest}, nil

	default:
		return Command{}, fmt.Errorf("%w: unknown keyword %q", apperror.ErrInvalidCommand, keyword)
	}
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", apperror.ErrInvalidCommand)
	case len(name) > MaxNameLength:
		return fmt.Errorf("%w: name is longer than %d", apperror.ErrInvalidCommand, MaxNameLength)
	case strings.ContainsAny(name, " \t\r\n"):
		return fmt.Errorf("%w: name must be a single word", apperror.ErrInvalidCommand)
	}

	return nil
}

package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/raft"
	"github.com/moontrade/tt800/tt800"
)

var (
	// ErrSyntax is returned where there was a syntax error
	ErrSyntax = errors.New("syntax error")
	// ErrWrongNumArgs is returned when the arg count is wrong
	ErrWrongNumArgs = errors.New("wrong number of arguments")
	// ErrUnauthorized is returned when a client connection has not been
	// authorized
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnknownCommand is returned when a command is not known
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNotLeader is returned when a write or read reaches a follower
	ErrNotLeader = raft.ErrNotLeader
	// ErrInvalidSeed is returned when a seed is not a 32-bit integer
	ErrInvalidSeed = errors.New("invalid seed")
	// ErrInvalidCount is returned when a draw count is outside
	// 1..MaxDrawCount
	ErrInvalidCount = errors.New("invalid count")
	// ErrInvalidState is returned when a generator state cannot be decoded
	ErrInvalidState = tt800.ErrInvalidState
)

var errWrongNumArgsRaft = errors.New("wrong number of arguments, try RAFT HELP")

func errUnknownSubcommand(args []string) error {
	return fmt.Errorf("unknown subcommand or wrong number of arguments for "+
		"'%s', try RAFT HELP", strings.Join(args, " "))
}

// Package protocol encodes and decodes the colon-delimited text commands
// accepted by the variable server.
//
// A connection carries exactly one command and the sender closes the
// connection to mark its end. There is no framing and no response.
//
//	a:<kind>:<name>:<value>   add or overwrite a variable
//	q                         stop the accept loop
//
// The value of an add command is everything after the third colon, so
// string values may themselves contain colons. Names may not.
package protocol

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ASHISH26940/sharedvars/internal/variant"
)

var (
	ErrMalformed   = errors.New("malformed command")
	ErrInvalidName = errors.New("invalid variable name")
)

const (
	addTag  = 'a'
	quitTag = 'q'
	sep     = ":"
)

// Op identifies what a decoded command asks the server to do.
type Op int

const (
	// OpIgnore is any message that is neither add nor quit.
	OpIgnore Op = iota
	OpAdd
	OpQuit
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "add"
	case OpQuit:
		return "quit"
	}
	return "ignore"
}

// Command is a single decoded wire message.
type Command struct {
	Op    Op
	Name  string
	Value variant.Variant
}

// Add builds an add command.
func Add(name string, v variant.Variant) Command {
	return Command{Op: OpAdd, Name: name, Value: v}
}

// Quit builds the quit command.
func Quit() Command {
	return Command{Op: OpQuit}
}

// ValidateName rejects names that cannot be carried on the wire.
func ValidateName(name string) error {
	if strings.Contains(name, sep) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, sep)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidName, name)
	}
	return nil
}

// Encode renders cmd in wire form.
func Encode(cmd Command) ([]byte, error) {
	switch cmd.Op {
	case OpAdd:
		if err := ValidateName(cmd.Name); err != nil {
			return nil, err
		}
		if !cmd.Value.IsValid() {
			return nil, fmt.Errorf("%w: add %q has no value", ErrMalformed, cmd.Name)
		}
		// Decode ignores messages that are not valid UTF-8.
		if !utf8.ValidString(cmd.Value.String()) {
			return nil, fmt.Errorf("%w: value of %q is not valid UTF-8", ErrMalformed, cmd.Name)
		}
		var b strings.Builder
		b.WriteByte(addTag)
		b.WriteString(sep)
		b.WriteString(cmd.Value.Kind().String())
		b.WriteString(sep)
		b.WriteString(cmd.Name)
		b.WriteString(sep)
		b.WriteString(cmd.Value.String())
		return []byte(b.String()), nil
	case OpQuit:
		return []byte{quitTag}, nil
	}
	return nil, fmt.Errorf("%w: cannot encode %s", ErrMalformed, cmd.Op)
}

// Decode parses one complete message.
//
// Messages that are not valid UTF-8 or that start with neither the add nor
// the quit tag decode to OpIgnore with a nil error. An add message with
// missing fields, an unknown kind, or a value that does not parse as its
// kind returns an error wrapping ErrMalformed.
func Decode(msg []byte) (Command, error) {
	if len(msg) == 0 || !utf8.Valid(msg) {
		return Command{Op: OpIgnore}, nil
	}
	switch msg[0] {
	case quitTag:
		return Quit(), nil
	case addTag:
		return decodeAdd(string(msg))
	}
	return Command{Op: OpIgnore}, nil
}

func decodeAdd(s string) (Command, error) {
	// The leading token is only checked by its first byte.
	fields := strings.SplitN(s, sep, 4)
	if len(fields) < 4 {
		return Command{}, fmt.Errorf("%w: add needs kind, name and value, got %d field(s)", ErrMalformed, len(fields)-1)
	}
	tag, name, text := fields[1], fields[2], fields[3]

	kind := variant.KindOf(tag)
	if kind == variant.KindInvalid {
		return Command{}, fmt.Errorf("%w: unknown kind %q", ErrMalformed, tag)
	}
	v, err := variant.Parse(kind, text)
	if err != nil {
		return Command{}, fmt.Errorf("%w: %q: %w", ErrMalformed, name, err)
	}
	return Add(name, v), nil
}

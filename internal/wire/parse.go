package wire

import (
	"strings"

	ierrors "goirc/internal/errors"
)

// Parse turns one line (without or with its terminator) into a Command.
//
// Unrecognised keywords are not an error: they come back with Kind
// Unknown so the caller can ignore them.  A *errors.ProtocolError is
// returned for empty lines and for recognised commands that lack a
// required argument.
func Parse(line string) (Command, error) {
	raw := strings.TrimRight(line, "\r\n")
	rest := strings.TrimLeft(raw, " \t")
	if strings.TrimSpace(rest) == "" {
		return Command{}, ierrors.Protocol("", line, ierrors.ErrEmptyLine)
	}

	cmd := Command{Raw: raw}

	if strings.HasPrefix(rest, ":") {
		end := strings.IndexByte(rest, ' ')
		if end < 0 {
			return Command{}, ierrors.Protocol("", line, ierrors.ErrEmptyLine)
		}
		cmd.Prefix = rest[1:end]
		rest = strings.TrimLeft(rest[end:], " \t")
	}

	// Keyword runs to the first space; "QUIT:reason" glues the trailing
	// straight onto it.
	end := strings.IndexAny(rest, " \t")
	if end < 0 {
		end = len(rest)
	}
	token := rest[:end]
	rest = rest[end:]
	if i := strings.IndexByte(token, ':'); i > 0 {
		cmd.Trailing = token[i+1:] + rest
		cmd.HasTrailing = true
		token = token[:i]
		rest = ""
	}
	if token == "" {
		return Command{}, ierrors.Protocol("", line, ierrors.ErrEmptyLine)
	}

	cmd.Keyword = strings.ToUpper(token)
	cmd.Kind = keywords[cmd.Keyword]
	cmd.Params, cmd.Trailing, cmd.HasTrailing = splitParams(rest, cmd.Trailing, cmd.HasTrailing)

	// "sender PRIVMSG receiver :content" without the leading colon.
	if cmd.Kind == Unknown && cmd.Prefix == "" && strings.EqualFold(cmd.Param(0), "PRIVMSG") {
		cmd.Prefix = token
		cmd.Keyword = "PRIVMSG"
		cmd.Kind = Privmsg
		cmd.Params = cmd.Params[1:]
	}

	if err := validate(cmd); err != nil {
		return Command{}, ierrors.Protocol(cmd.Keyword, line, err)
	}
	return cmd, nil
}

// splitParams tokenises the argument section of a line.
func splitParams(rest, trailing string, hasTrailing bool) ([]string, string, bool) {
	var params []string
	for {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			return params, trailing, hasTrailing
		}
		if rest[0] == ':' {
			return params, rest[1:], true
		}
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			return append(params, rest), trailing, hasTrailing
		}
		params = append(params, rest[:end])
		rest = rest[end:]
	}
}

func validate(cmd Command) error {
	switch cmd.Kind {
	case Nick, User:
		if cmd.Param(0) == "" {
			return ierrors.ErrNeedMoreParams
		}
	case Privmsg:
		if !cmd.HasTrailing {
			return ierrors.ErrNeedMoreParams
		}
	}
	return nil
}

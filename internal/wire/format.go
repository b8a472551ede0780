package wire

import (
	"fmt"
	"strings"
)

// Format serialises cmd back to a newline-terminated line.
func Format(cmd Command) []byte {
	var b strings.Builder
	if cmd.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(cmd.Prefix)
		b.WriteByte(' ')
	}
	keyword := cmd.Keyword
	if keyword == "" {
		keyword = cmd.Kind.String()
	}
	b.WriteString(keyword)
	for _, p := range cmd.Params {
		b.WriteByte(' ')
		b.WriteString(p)
	}
	if cmd.HasTrailing {
		b.WriteString(" :")
		b.WriteString(cmd.Trailing)
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

// FormatPrivmsg yields the canonical relayed form
// ":<sender> PRIVMSG <channel> :<content>\n".
func FormatPrivmsg(sender, channel, content string) []byte {
	return Format(Command{
		Kind:        Privmsg,
		Prefix:      sender,
		Params:      []string{channel},
		Trailing:    content,
		HasTrailing: true,
	})
}

// Welcome is the server line announcing a newly registered nickname.
func Welcome(nickname, channel string) []byte {
	return FormatPrivmsg(ServerName, channel,
		fmt.Sprintf("Welcome %s to our amazing channel", nickname))
}

// Departure is the server line announcing that nickname has left.
func Departure(nickname, channel, reason string) []byte {
	if reason == "" {
		return FormatPrivmsg(ServerName, channel, nickname+" has quit")
	}
	return FormatPrivmsg(ServerName, channel,
		fmt.Sprintf("%s has quit (%s)", nickname, reason))
}

// Token renders a bare error token line such as NicknameInUse.
func Token(token string) []byte {
	return []byte(token + "\n")
}

package lobby

import "strings"

// Chat command prefixes. The leading token of a lobby frame selects
// the route; anything unrecognized degrades to a public message.
const (
	CommandMessage = "/message"
	CommandPrivate = "/private"
	CommandInvite  = "/invite"
	CommandSearch  = "/search"
)

// ParsedCommand is the routing result for one lobby frame.
type ParsedCommand struct {
	Command   string
	Recipient string
	Text      string
}

// ParseCommand classifies a raw chat line. Lines without a slash and
// lines with an unknown slash prefix are public messages carrying the
// original text.
func ParseCommand(message string) ParsedCommand {
	if !strings.HasPrefix(message, "/") {
		return ParsedCommand{Command: CommandMessage, Text: message}
	}

	command, rest, _ := strings.Cut(message, " ")
	switch command {
	case CommandMessage:
		return ParsedCommand{Command: CommandMessage, Text: rest}
	case CommandPrivate, CommandInvite:
		recipient, text, _ := strings.Cut(rest, " ")
		return ParsedCommand{Command: command, Recipient: recipient, Text: text}
	case CommandSearch:
		return ParsedCommand{Command: CommandSearch}
	default:
		return ParsedCommand{Command: CommandMessage, Text: message}
	}
}

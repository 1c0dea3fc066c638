// Package bot answers interactive chat commands using the shared check and
// notify pipeline.
package bot

import (
	"strings"
	"unicode"
)

// Command is a recognised bot command.
type Command int

// Commands.
const (
	// CommandNone is plain text or a command for another bot.
	CommandNone Command = iota
	CommandUnknown
	CommandHelp
	CommandPM25
	CommandCheck
)

var commandNames = map[string]Command{
	"help":  CommandHelp,
	"start": CommandHelp,
	"pm25":  CommandPM25,
	"check": CommandCheck,
}

// Reply texts.
const (
	helpText = "คำสั่งที่ใช้ได้:\n" +
		"/help - แสดงคำสั่งทั้งหมด\n" +
		"/pm25 - ดูคุณภาพอากาศทุกพื้นที่\n" +
		"/check - ดูคุณภาพอากาศ เช่น /check Ban Suan"

	checkGuidance = "กรุณาระบุชื่อเมือง เช่น /check Ban Suan"

	errorReplyFormat = "❌ ไม่สามารถดึงข้อมูล %s ได้: %s"
)

// HelpText returns the reply to /help.
func HelpText() string { return helpText }

// ParseCommand splits a message into a command and its argument. botName,
// if set, allows the "/check@botName" form used in groups. Plain text and
// commands addressed to another bot are CommandNone.
func ParseCommand(text, botName string) (Command, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return CommandNone, ""
	}

	head, arg := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, arg = head[:i], head[i:]
	}
	name, target, addressed := strings.Cut(head, "@")
	if addressed && !strings.EqualFold(target, botName) {
		return CommandNone, ""
	}

	cmd, ok := commandNames[strings.ToLower(name)]
	if !ok {
		return CommandUnknown, ""
	}
	return cmd, strings.TrimSpace(arg)
}

// String returns the command name without the slash.
func (c Command) String() string {
	switch c {
	case CommandHelp:
		return "help"
	case CommandPM25:
		return "pm25"
	case CommandCheck:
		return "check"
	case CommandNone:
		return "none"
	default:
		return "unknown"
	}
}

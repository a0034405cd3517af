package gameserver

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"

	"github.com/cory-johannsen/vowmud/internal/frontend/telnet"
	"github.com/cory-johannsen/vowmud/internal/game/command"
	"github.com/cory-johannsen/vowmud/internal/game/session"
	"github.com/cory-johannsen/vowmud/internal/game/world"
)

// DefaultWidth is the column at which room descriptions wrap.
const DefaultWidth = 78

// wrap word-wraps text to width columns with telnet line endings.
func wrap(text string, width int) string {
	return strings.ReplaceAll(wordwrap.String(text, width), "\n", "\r\n")
}

// RenderRoomView formats a room snapshot as colored Telnet text.
func RenderRoomView(v session.View) string {
	var b strings.Builder

	b.WriteString(telnet.Colorize(telnet.BrightYellow, v.Room.Title))
	b.WriteString("\r\n")
	b.WriteString(telnet.Colorize(telnet.White, wrap(v.Room.Description, DefaultWidth)))
	b.WriteString("\r\n")
	b.WriteString(renderExitLine(v.Room.VisibleExits()))

	if len(v.Occupants) > 0 {
		b.WriteString("\r\n")
		b.WriteString(telnet.Colorf(telnet.Green, "Also here: %s", strings.Join(v.Occupants, ", ")))
	}
	return b.String()
}

func renderExitLine(exits []world.Exit) string {
	if len(exits) == 0 {
		return telnet.Colorize(telnet.Dim, "There are no obvious exits.")
	}
	labels := make([]string, 0, len(exits))
	for _, e := range exits {
		labels = append(labels, string(e.Direction))
	}
	return telnet.Colorf(telnet.Cyan, "[Exits: %s]", strings.Join(labels, " "))
}

// RenderExitList formats the visible exits of a room, one per line.
func RenderExitList(room *world.Room) string {
	exits := room.VisibleExits()
	if len(exits) == 0 {
		return telnet.Colorize(telnet.Dim, "There are no obvious exits.")
	}
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.Cyan, "Exits:"))
	for _, e := range exits {
		label := string(e.Direction)
		if alias := e.Direction.Alias(); alias != "" {
			label += " (" + alias + ")"
		}
		if e.Locked {
			label += telnet.Colorize(telnet.Red, " (locked)")
		}
		b.WriteString("\r\n")
		b.WriteString(fmt.Sprintf("  %s%s%s", telnet.BrightCyan, label, telnet.Reset))
	}
	return b.String()
}

// RenderSay formats a room chat line as heard by others.
func RenderSay(sender, text string) string {
	return telnet.Colorf(telnet.BrightWhite, "%s says, '%s'", sender, text)
}

// RenderSayEcho formats the speaker's own confirmation.
func RenderSayEcho(text string) string {
	return telnet.Colorf(telnet.BrightWhite, "You say, '%s'", text)
}

// RenderGossip formats a gossip channel line as heard by others.
func RenderGossip(sender, text string) string {
	return telnet.Colorf(telnet.Magenta, "%s gossips, '%s'", sender, text)
}

// RenderGossipEcho formats the gossiper's own confirmation.
func RenderGossipEcho(text string) string {
	return telnet.Colorf(telnet.Magenta, "You gossip, '%s'", text)
}

// RenderTell formats a direct message as seen by the recipient.
func RenderTell(sender, text string) string {
	return telnet.Colorf(telnet.Cyan, "%s tells you, '%s'", sender, text)
}

// RenderTellEcho formats the sender's confirmation of a direct message.
func RenderTellEcho(recipient, text string) string {
	return telnet.Colorf(telnet.Cyan, "You tell %s, '%s'", recipient, text)
}

// RenderNotice formats an occupancy notice.
func RenderNotice(n session.Notice) string {
	text := session.DefaultNoticeText(n)
	switch n.Kind {
	case session.NoticeEnter, session.NoticeArrive:
		return telnet.Colorize(telnet.Green, text)
	default:
		return telnet.Colorize(telnet.Yellow, text)
	}
}

// RenderSystem formats a server-wide announcement.
func RenderSystem(text string) string {
	return telnet.Colorf(telnet.BrightRed, "[System] %s", text)
}

// RenderError formats a command failure shown only to the actor.
func RenderError(text string) string {
	return telnet.Colorize(telnet.Red, text)
}

// RenderWho formats the online player list.
func RenderWho(names []string) string {
	var b strings.Builder
	b.WriteString(telnet.Colorf(telnet.BrightGreen, "Players online (%d):", len(names)))
	for _, n := range names {
		b.WriteString("\r\n  ")
		b.WriteString(n)
	}
	return b.String()
}

var helpCategoryOrder = []string{
	command.CategoryMovement,
	command.CategoryWorld,
	command.CategoryCommunication,
	command.CategorySystem,
}

// RenderHelp formats the command list grouped by category.
func RenderHelp(reg *command.Registry) string {
	byCat := reg.CommandsByCategory()
	var b strings.Builder
	b.WriteString(telnet.Colorize(telnet.BrightYellow, "Commands:"))
	for _, cat := range helpCategoryOrder {
		cmds := byCat[cat]
		if len(cmds) == 0 {
			continue
		}
		b.WriteString("\r\n")
		b.WriteString(telnet.Colorize(telnet.Cyan, strings.ToUpper(cat[:1])+cat[1:]+":"))
		for _, cmd := range cmds {
			name := cmd.Name
			if cmd.Usage != "" {
				name += " " + cmd.Usage
			}
			if len(cmd.Aliases) > 0 {
				name += " (" + strings.Join(cmd.Aliases, ", ") + ")"
			}
			b.WriteString(fmt.Sprintf("\r\n  %-28s %s", name, cmd.Help))
		}
	}
	return b.String()
}

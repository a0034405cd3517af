// Package gameserver holds the command handlers that run on behalf of active
// players: movement and look, chat, account commands, and the periodic
// location saver. Handlers reach world state only through session.Manager.
package gameserver

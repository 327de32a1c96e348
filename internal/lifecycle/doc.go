// Package lifecycle keeps attachment containers consistent with the number
// of attachments a task owns.
//
// A task is Unattached, Direct (attachments joined by attachment edges) or
// Grouped (attachments held by a group node joined to the task by a single
// group edge). The Manager moves tasks between those states as attachments
// come and go, and reflows containers whenever their membership changes.
// All mutations go through graph.Model, so the caller can drain them as one
// command.
package lifecycle

// Package tui renders live generation progress in the terminal.
//
// The Bubble Tea ProgressModel consumes engine run notifications delivered
// through ProgramObserver, which adapts the engine's Observer interface to
// program messages. PlainObserver is the non-interactive fallback, driving
// a line-oriented progress bar for pipes and dumb terminals.
package tui

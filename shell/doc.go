// Package shell is the interactive read-eval-print loop. Each prompt shows
// the completion status of the previous line:
//
//	[0] psh> set x 1
//	1
//	[0] psh> set y
//	can't read "y": no such variable
//	[1] psh>
//
// A terminal gets a bubbletea line editor with history; anything else is
// read line by line. An empty line ends the session.
package shell

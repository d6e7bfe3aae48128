// Package koth groups the king-of-the-hill scoring service.
//
// An external process writes the current king's name to a king file. The
// scoring loop (package scoring) reads that file on a fixed interval, awards
// the king points on an in-memory scoreboard and persists the scoreboard to
// a JSON data file whenever the total reaches a multiple of ten. The
// listener (package listener) serves a minimal line protocol (package
// protocol) that returns either the data file or the king file.
//
// The two workers never share memory. The king file and the data file are
// the only channel between them, and both are replaced as whole files.
package koth

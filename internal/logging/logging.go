// Package logging wraps the standard log package with a component prefix,
// generalizing the teacher's bare log.Printf call sites (coordinator.go,
// worker.go, cmd/crawler/main.go) into a reusable per-component logger so
// workernode, proxyfetcher, and siteparser code tag their own output
// without each hand-formatting a prefix string.
package logging

import (
	"log"
	"os"
)

// Logger prints lines prefixed with "[component] ", matching the bracketed
// category tags the teacher's worker.go already uses for fetch failures
// ("[network error]", "[%s]").
type Logger struct {
	*log.Logger
}

// New returns a Logger writing to stderr, tagged with component.
func New(component string) *Logger {
	return &Logger{log.New(os.Stderr, "["+component+"] ", log.LstdFlags)}
}

// Package project resolves the set of known projects from the registry
// directory and a bounded recursive filesystem scan.
package project

import (
	"path/filepath"
)

// Source records how a project became known.
type Source string

// Source values.
const (
	SourceRegistered     Source = "registered"
	SourceAutoDiscovered Source = "auto-discovered"
)

// Project is a resolved project root.
type Project struct {
	// ID is the stable identifier. Defaults to the directory name when the
	// project config does not set one explicitly.
	ID string

	// Code is the short uppercase prefix used in ticket codes (e.g. MDT).
	Code string

	// Name is the human-readable project name.
	Name string

	// Path is the absolute project root directory.
	Path string

	// TicketsPath is the ticket directory relative to Path.
	TicketsPath string

	// CounterFile is the counter file name, sibling to the project config.
	CounterFile string

	// StartNumber is the lower bound for the first allocated number.
	StartNumber int

	// NumberWidth is the zero-padding width of ticket numbers.
	NumberWidth int

	// Active marks the project as in use.
	Active bool

	// Source is how the project was found.
	Source Source

	// Description is free text from the project config.
	Description string
}

// TicketsDir returns the absolute ticket directory.
func (p *Project) TicketsDir() string {
	return filepath.Join(p.Path, p.TicketsPath)
}

// CounterPath returns the absolute counter file path.
func (p *Project) CounterPath() string {
	return filepath.Join(p.Path, p.CounterFile)
}

package svcversion

import (
	"fmt"
	"strings"
)

// Kind is the suffix token that tells pre-release versions from release candidates.
type Kind string

const (
	Snapshot Kind = "SNAPSHOT"
	RC       Kind = "RC"
)

// Track is one of the two parallel release lines a service sits on.
type Track int

const (
	Develop Track = iota
	Release
)

// Tracks lists every track in the order they are processed.
var Tracks = []Track{Develop, Release}

func (t Track) Kind() Kind {
	if t == Release {
		return RC
	}
	return Snapshot
}

// Branch is the default base branch of the track.
func (t Track) Branch() string {
	if t == Release {
		return "release"
	}
	return "develop"
}

func (t Track) String() string {
	return t.Branch()
}

func ParseTrack(s string) (Track, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "develop":
		return Develop, nil
	case "release":
		return Release, nil
	}
	return 0, fmt.Errorf("unknown track %q: must be one of develop, release", s)
}

package svcversion

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	sv "github.com/Masterminds/semver"
)

var (
	ErrUnparseable  = errors.New("unparseable service version")
	ErrKindMismatch = errors.New("service version kind does not match track")
)

// Version is a service's own version, "MAJOR.MINOR.PATCH-KIND-SEQUENCE".
type Version struct {
	Major, Minor, Patch int
	Kind                Kind
	Sequence            int
}

// DependencyRequest is the shared-library version being rolled out.
type DependencyRequest struct {
	ArtifactID    string
	TargetVersion string
}

var versionRegex = regexp.MustCompile(`^((?:0|[1-9][0-9]*)\.(?:0|[1-9][0-9]*)\.(?:0|[1-9][0-9]*))-(SNAPSHOT|RC)-(0|[1-9][0-9]*)$`)

// Parse never guesses: anything off the grammar returns an error wrapping ErrUnparseable.
func Parse(s string) (*Version, error) {
	matches := versionRegex.FindStringSubmatch(s)
	if matches == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnparseable, s)
	}

	core, err := sv.NewVersion(matches[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnparseable, s, err)
	}

	seq, err := strconv.Atoi(matches[3])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: sequence: %v", ErrUnparseable, s, err)
	}
	// The next version must still have a non-negative sequence.
	if seq == math.MaxInt {
		return nil, fmt.Errorf("%w: %q: sequence cannot be incremented", ErrUnparseable, s)
	}

	major, minor, patch := core.Major(), core.Minor(), core.Patch()
	if int64(int(major)) != major || int64(int(minor)) != minor || int64(int(patch)) != patch {
		return nil, fmt.Errorf("%w: %q: out of range", ErrUnparseable, s)
	}

	return &Version{
		Major:    int(major),
		Minor:    int(minor),
		Patch:    int(patch),
		Kind:     Kind(matches[2]),
		Sequence: seq,
	}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d-%s-%d", v.Major, v.Minor, v.Patch, v.Kind, v.Sequence)
}

// KindPolicy decides what happens when the recorded kind disagrees with the track.
type KindPolicy int

const (
	// BranchIsAuthority rewrites the kind to the one dictated by the track.
	BranchIsAuthority KindPolicy = iota
	// RejectKindMismatch refuses to bump a version whose kind disagrees with the track.
	RejectKindMismatch
)

func ParseKindPolicy(s string) (KindPolicy, error) {
	switch s {
	case "", "branch":
		return BranchIsAuthority, nil
	case "reject":
		return RejectKindMismatch, nil
	}
	return 0, fmt.Errorf("unknown kind policy %q: must be one of branch, reject", s)
}

// Result is the outcome of computing a service's next version.
type Result struct {
	// Version is the string to write back. For a pass-through it is the original input.
	Version string

	// Next is nil for a pass-through.
	Next *Version

	// PassThrough is set when the current version could not be parsed.
	PassThrough bool

	// Warning is the single warning to surface for a pass-through.
	Warning string
}

// Next computes the version that follows current on the given track.
//
// An unparseable current version is passed through unchanged with a warning.
// The only error is ErrKindMismatch under RejectKindMismatch.
func Next(current string, track Track, policy KindPolicy) (Result, error) {
	v, err := Parse(current)
	if err != nil {
		return Result{
			Version:     current,
			PassThrough: true,
			Warning:     fmt.Sprintf("keeping version %q unchanged: %v", current, err),
		}, nil
	}

	if v.Kind != track.Kind() && policy == RejectKindMismatch {
		return Result{}, fmt.Errorf("%w: %s is on track %s", ErrKindMismatch, current, track)
	}

	next := NextVersion(*v, track)

	return Result{Version: next.String(), Next: &next}, nil
}

// NextVersion bumps the sequence and takes the kind from the track.
func NextVersion(v Version, track Track) Version {
	v.Sequence++
	v.Kind = track.Kind()
	return v
}

// DependencyVersion is the version injected for the shared library on the track.
func DependencyVersion(req DependencyRequest, track Track) string {
	return fmt.Sprintf("%s-%s", req.TargetVersion, track.Kind())
}

// ValidateTarget reports whether the target version looks like a semantic version.
// Callers only warn on failure.
func ValidateTarget(target string) error {
	if _, err := sv.NewVersion(target); err != nil {
		return fmt.Errorf("target version %q is not a semantic version: %v", target, err)
	}
	return nil
}

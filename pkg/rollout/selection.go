package rollout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/variantdev/libroll/pkg/svcversion"
	"github.com/variantdev/libroll/pkg/workflow"
)

var ErrInvalidSelection = errors.New("invalid branch selection")

// Selection is the set of tracks requested for a run.
type Selection string

const (
	SelectDevelop Selection = "develop"
	SelectRelease Selection = "release"
	SelectBoth    Selection = "both"
)

func ParseSelection(s string) (Selection, error) {
	switch sel := Selection(strings.ToLower(strings.TrimSpace(s))); sel {
	case SelectDevelop, SelectRelease, SelectBoth:
		return sel, nil
	}
	return "", fmt.Errorf("%w: %q: must be one of develop, release, both", ErrInvalidSelection, s)
}

// Tracks returns the selected tracks in processing order.
func (s Selection) Tracks() []svcversion.Track {
	switch s {
	case SelectDevelop:
		return []svcversion.Track{svcversion.Develop}
	case SelectRelease:
		return []svcversion.Track{svcversion.Release}
	case SelectBoth:
		return svcversion.Tracks
	}
	return nil
}

// ScopeMode chooses the update branch scope of a run.
type ScopeMode string

const (
	// ScopeAuto scopes branches by track only when both tracks run.
	ScopeAuto    ScopeMode = "auto"
	ScopeVersion ScopeMode = "version"
	ScopeTrack   ScopeMode = "track"
)

func ParseScopeMode(s string) (ScopeMode, error) {
	switch m := ScopeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ScopeAuto, nil
	case ScopeAuto, ScopeVersion, ScopeTrack:
		return m, nil
	}
	return "", fmt.Errorf("unknown branch scope %q: must be one of auto, version, track", s)
}

// Resolve picks the branch scope for the given selection.
func (m ScopeMode) Resolve(sel Selection) workflow.BranchScope {
	switch m {
	case ScopeTrack:
		return workflow.TrackScope
	case ScopeVersion:
		return workflow.VersionScope
	}
	if len(sel.Tracks()) > 1 {
		return workflow.TrackScope
	}
	return workflow.VersionScope
}

package workflow

import (
	"errors"
	"fmt"

	"github.com/variantdev/libroll/pkg/svcversion"
)

var ErrBranchExists = errors.New("branch already exists")

// BranchScope decides whether update branches of the two tracks share a name.
type BranchScope int

const (
	// VersionScope names the update branch after artifact and target version only.
	VersionScope BranchScope = iota
	// TrackScope adds the track kind so both tracks can be updated in one run.
	TrackScope
)

func (s BranchScope) String() string {
	if s == TrackScope {
		return "track"
	}
	return "version"
}

// StashBranchName is the branch that keeps uncommitted changes found before an update.
func StashBranchName(req svcversion.DependencyRequest, track svcversion.Track) string {
	return fmt.Sprintf("%s-%s-%s-unneeded-changes", req.ArtifactID, req.TargetVersion, track.Kind())
}

// UpdateBranchName is the branch the update is committed and pushed to.
func UpdateBranchName(req svcversion.DependencyRequest, track svcversion.Track, scope BranchScope) string {
	if scope == TrackScope {
		return fmt.Sprintf("%s-%s-%s-updates", req.ArtifactID, req.TargetVersion, track.Kind())
	}
	return fmt.Sprintf("%s-%s-updates", req.ArtifactID, req.TargetVersion)
}

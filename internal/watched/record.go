// Package watched implements the playback state pipeline: extracting
// watch records from a source instance, resolving them against the
// destination catalog, and loading them into the destination's state
// table.
package watched

// ArtifactKind tags the export artifact carrying watch records.
const ArtifactKind = "watch-states"

// ArtifactName is the default file name for the watch state artifact.
const ArtifactName = "watched.json"

// Record is one user's playback state for one media item, decoupled from
// both instances' internal row ids. Path plus Username is the portable
// identity; PresentationUniqueKey is the source fingerprint in canonical
// (undashed) form, carried for diagnostics and never written to the
// destination.
type Record struct {
	ItemName              string `json:"ItemName"`
	Path                  string `json:"Path"`
	PlaybackPositionTicks int64  `json:"PlaybackPositionTicks"`
	LastPlayedDate        string `json:"LastPlayedDate"`
	Username              string `json:"Username"`
	PresentationUniqueKey string `json:"PresentationUniqueKey"`
}

package blackboard

// Thread tracking utilities
//
// Threads group the versions of one Project Specification field within a run.
// They are stored in Redis as ZSETs where:
// - Key: {prefix}:{run_id}:thread:{field}
// - Members: entry IDs
// - Score: The entry's version number (as float64)

// ThreadVersion represents a single version in a thread.
type ThreadVersion struct {
	EntryID string
	Version int
}

// ThreadScore converts a version number to a Redis ZSET score.
func ThreadScore(version int) float64 {
	return float64(version)
}

// VersionFromScore converts a Redis ZSET score back to a version number.
func VersionFromScore(score float64) int {
	return int(score)
}

package store

const (
	// CheckpointPrefix is the key prefix under which the checkpoint store keeps its entries.
	CheckpointPrefix = "vesting"

	// LatestRunKey is the meta key holding the id of the most recently saved run.
	LatestRunKey = "latest-run"

	checkpointPrefix = "c"
	metaPrefix       = "m"
)

func getCheckpointKey(runID string) string {
	return GenerateKey([]string{checkpointPrefix, runID})
}

func getMetaKey(key string) string {
	return GenerateKey([]string{metaPrefix, key})
}

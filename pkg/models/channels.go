package models

// Redis names shared by the simulator, processor and gateway.
const (
	SnapshotKeyPrefix    = "asset:"  // SET asset:<id> <AssetUpdate>
	AssetChannelPrefix   = "assets." // PUBLISH assets.<id> <AssetUpdate>
	NotificationsChannel = "feed.notifications"
	ControlChannel       = "feed.control"
)

func SnapshotKey(id string) string  { return SnapshotKeyPrefix + id }
func AssetChannel(id string) string { return AssetChannelPrefix + id }

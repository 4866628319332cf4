package models

// SettingLastSync holds the unix-millis time of the last drain that synced
// at least one operation.
const SettingLastSync = "last_sync"

// Setting is a singleton key/value pair; the last write wins.
type Setting struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Package bridge holds application-wide defaults shared by the config and
// wiring layers.
package bridge

const (
	DefaultAppName      = "chatbridge"
	DefaultConfigPath   = "/etc/chatbridge"
	DefaultDatabasePath = "chatbridge.db"
)

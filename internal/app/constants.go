package app

import "time"

const (
	Name            = "clemremote"
	ConfigFilename  = "config.json"
	DBFilename      = "history.db"
	LogFilename     = "clemremote.log"
	ShutdownTimeout = 5 * time.Second
)

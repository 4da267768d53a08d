package app

const (
	Name           = "antbridge"
	SourceURL      = "https://git.skobk.in/skobkin/antbridge"
	ConfigFilename = "config.json"
	DBFilename     = "broadcasts.db"
	LogFilename    = "antbridge.log"
)

package constants

const (
	APP_NAME = "go-relay"
	// prefix used to read config parameters from environment variables
	ENV_PREFIX = "GO_RELAY"
	// config file name
	CONFIG_FILE_NAME = "config.toml"
	// config file type
	CONFIG_FILE_TYPE = "toml"
	// chain database directory inside the data dir
	CHAINDATA_DIR_NAME = "chaindata"
	// submission inbox directory inside the data dir
	INBOX_DIR_NAME = "inbox"
	// sub directories of the submission inbox
	INBOX_DONE_DIR   = "done"
	INBOX_FAILED_DIR = "failed"
)

package config

const (
	defaultDataDir              = "~/.local/share/rfidmonitor"
	defaultLogDir               = "~/.local/share/rfidmonitor/logs"
	defaultEndpoint             = "RFIDMonitorDaemon"
	defaultSocketDir            = "/tmp"
	defaultDialTimeout          = 2
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultDBFile               = "rfidmonitor.db"
	defaultDevice               = "/dev/ttyUSB0"
	defaultConfigFile           = "~/.config/rfidmonitor/config.toml"
	projectConfigFile           = "rfidmonitor.toml"
	socketDirEnv                = "RFIDMONITOR_SOCKET_DIR"
	defaultCommunicationDefault = "communication.sendMessage"
	defaultPersistenceDefault   = "persistence.insertObject"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		IPC: IPC{
			Endpoint:    defaultEndpoint,
			SocketDir:   defaultSocketDir,
			DialTimeout: defaultDialTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Persistence: Persistence{
			Enabled: true,
			DBFile:  defaultDBFile,
		},
		Monitor: Monitor{
			Device: defaultDevice,
			Defaults: map[string]string{
				"communication": defaultCommunicationDefault,
				"persistence":   defaultPersistenceDefault,
			},
		},
	}
}

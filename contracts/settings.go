package contracts

type ProgressSink interface {
	Report(percent int, message string)
}

// Settings are owned by the surrounding application; this module only reads them.
type Settings struct {
	ProxyURL  string
	JavaPath  string
	MinMemory int
	MaxMemory int
}

type SettingsProvider interface {
	Settings() Settings
}

type Environment interface {
	LookupEnv(key string) (value string, set bool)
}

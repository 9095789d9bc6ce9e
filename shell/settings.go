package shell

import (
	"os"

	"github.com/smarty/jarsmith/contracts"
)

type Environment struct{}

func NewEnvironment() *Environment { return &Environment{} }

func (this *Environment) LookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// StaticSettings hands out settings fixed when the process started, which is
// all the driver command needs from the surrounding launcher.
type StaticSettings struct {
	settings contracts.Settings
}

func NewStaticSettings(config contracts.Config) *StaticSettings {
	return &StaticSettings{settings: contracts.Settings{ProxyURL: config.Proxy}}
}

func (this *StaticSettings) Settings() contracts.Settings { return this.settings }

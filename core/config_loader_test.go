package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/smarty/assertions/should"
	"github.com/smarty/gunit"

	"github.com/smarty/jarsmith/contracts"
	"github.com/smarty/jarsmith/shell"
)

func TestConfigLoaderFixture(t *testing.T) {
	gunit.Run(new(ConfigLoaderFixture), t)
}

type ConfigLoaderFixture struct {
	*gunit.Fixture

	loader      *ConfigLoader
	storage     *shell.InMemoryFileSystem
	environment FakeEnvironment
	stderr      *bytes.Buffer
}

func (this *ConfigLoaderFixture) Setup() {
	this.storage = shell.NewInMemoryFileSystem()
	this.environment = make(FakeEnvironment)
	this.stderr = new(bytes.Buffer)
	this.loader = NewConfigLoader(this.storage, this.environment, this.stderr)
}

func (this *ConfigLoaderFixture) TestDefaultsWithOnlyTheRoot() {
	config, err := this.loader.LoadConfig("update", []string{"--root", "/games/survival/", "--platform", "linux", "1.1"})

	this.So(err, should.BeNil)
	expected := contracts.DefaultConfig()
	expected.InstanceRoot = "/games/survival"
	expected.InstanceID = "default"
	expected.Platform = "linux"
	expected.Arguments = []string{"1.1"}
	this.So(config, should.Resemble, expected)
}

func (this *ConfigLoaderFixture) TestConfigFileOverridesDefaults() {
	_ = this.storage.WriteFile("/etc/jarsmith.yaml", []byte(`
instance_root: /games/creative
instance_id: creative
platform: darwin
retry:
  max_attempts: 3
  initial_backoff: 2s
  max_backoff: 10s
patch:
  post_patch_policy: error
fetch:
  libraries: [lwjgl.jar]
catalog:
  equivalent_tags:
    aaaa: bbbb
`))

	config, err := this.loader.LoadConfig("ensure", []string{"--config", "/etc/jarsmith.yaml"})

	this.So(err, should.BeNil)
	this.So(config.ConfigPath, should.Equal, "/etc/jarsmith.yaml")
	this.So(config.InstanceRoot, should.Equal, "/games/creative")
	this.So(config.InstanceID, should.Equal, "creative")
	this.So(config.Platform, should.Equal, "macosx")
	this.So(config.Retry, should.Resemble, contracts.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Second * 2, MaxBackoff: time.Second * 10})
	this.So(config.Patch.PostPatchPolicy, should.Equal, contracts.ErrorOnMismatch)
	this.So(config.Patch.IndexURL, should.Equal, contracts.DefaultConfig().Patch.IndexURL)
	this.So(config.Fetch.Libraries, should.Resemble, []string{"lwjgl.jar"})
	this.So(config.Catalog.EquivalentTags, should.Resemble, map[string]string{"aaaa": "bbbb"})
}

func (this *ConfigLoaderFixture) TestFlagsOverrideConfigFile() {
	_ = this.storage.WriteFile("/etc/jarsmith.yaml", []byte("instance_root: /games/a\nretry:\n  max_attempts: 3\n"))

	config, err := this.loader.LoadConfig("update", []string{
		"--config", "/etc/jarsmith.yaml",
		"--root", "/games/b",
		"--instance", "b",
		"--max-retry", "9",
		"--post-patch-policy", "error",
		"--platform", "windows",
		"--force",
	})

	this.So(err, should.BeNil)
	this.So(config.InstanceRoot, should.Equal, "/games/b")
	this.So(config.InstanceID, should.Equal, "b")
	this.So(config.Retry.MaxAttempts, should.Equal, 9)
	this.So(config.Patch.PostPatchPolicy, should.Equal, contracts.ErrorOnMismatch)
	this.So(config.Platform, should.Equal, "windows")
	this.So(config.Force, should.BeTrue)
}

func (this *ConfigLoaderFixture) TestProxyFromEnvironment() {
	this.environment[proxyEnvironmentVariable] = "http://proxy.local:3128"

	config, err := this.loader.LoadConfig("update", []string{"--root", "/games/a", "--platform", "linux"})

	this.So(err, should.BeNil)
	this.So(config.Proxy, should.Equal, "http://proxy.local:3128")
}

func (this *ConfigLoaderFixture) TestInvalidCLI() {
	config, err := this.loader.LoadConfig("update", []string{"--max-retry", "Hello, world!"})

	this.So(err, should.NotBeNil)
	this.So(config, should.BeZeroValue)
}

func (this *ConfigLoaderFixture) TestMissingConfigFile() {
	config, err := this.loader.LoadConfig("update", []string{"--config", "/missing.yaml"})

	this.So(err, should.NotBeNil)
	this.So(config, should.BeZeroValue)
}

func (this *ConfigLoaderFixture) TestMalformedConfigFile() {
	_ = this.storage.WriteFile("/etc/jarsmith.yaml", []byte("retry: [unclosed"))

	_, err := this.loader.LoadConfig("update", []string{"--config", "/etc/jarsmith.yaml"})

	this.So(err, should.NotBeNil)
	this.So(err.Error(), should.StartWith, "/etc/jarsmith.yaml")
}

func (this *ConfigLoaderFixture) TestValidation() {
	this.assertInvalid(blankInstanceRootErr)
	this.assertInvalid(maxRetryErr, "--root", "/a", "--platform", "linux", "--max-retry", "0")
	this.assertInvalid(postPatchPolicyErr, "--root", "/a", "--platform", "linux", "--post-patch-policy", "ignore")

	_, err := this.loader.LoadConfig("update", []string{"--root", "/a", "--platform", "beos"})
	this.So(err, should.NotBeNil)
}

func (this *ConfigLoaderFixture) assertInvalid(expected error, args ...string) {
	config, err := this.loader.LoadConfig("update", args)
	this.So(err, should.Equal, expected)
	this.So(config, should.BeZeroValue)
}

//////////////////////////////////////////////////////////

type FakeEnvironment map[string]string

func (this FakeEnvironment) LookupEnv(key string) (value string, set bool) {
	value, set = this[key]
	return value, set
}

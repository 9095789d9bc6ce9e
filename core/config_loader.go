package core

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/smarty/jarsmith/contracts"
)

const proxyEnvironmentVariable = "JARSMITH_PROXY"

type ConfigLoader struct {
	storage contracts.FileReader
	env     contracts.Environment
	stderr  io.Writer
}

func NewConfigLoader(storage contracts.FileReader, env contracts.Environment, stderr io.Writer) *ConfigLoader {
	return &ConfigLoader{storage: storage, env: env, stderr: stderr}
}

// LoadConfig layers the built-in defaults, the YAML file named by --config,
// the environment and finally any flags that were set explicitly.
func (this *ConfigLoader) LoadConfig(name string, args []string) (config contracts.Config, err error) {
	flags, values := this.newFlagSet(name)
	err = flags.Parse(args)
	if err != nil {
		return contracts.Config{}, err
	}

	config = contracts.DefaultConfig()
	if values.ConfigPath != "" {
		config, err = this.parseConfigFile(values.ConfigPath, config)
		if err != nil {
			return contracts.Config{}, err
		}
	}
	if proxy, set := this.env.LookupEnv(proxyEnvironmentVariable); set && proxy != "" {
		config.Proxy = proxy
	}
	this.applyFlags(flags, values, &config)

	err = this.validate(&config)
	if err != nil {
		return contracts.Config{}, err
	}
	return config, nil
}

func (this *ConfigLoader) newFlagSet(name string) (*pflag.FlagSet, *contracts.Config) {
	values := &contracts.Config{}
	flags := pflag.NewFlagSet("jarsmith "+name, pflag.ContinueOnError)
	flags.SetOutput(this.stderr)
	flags.StringVar(&values.ConfigPath, "config", "", "Path to a YAML config file.")
	flags.StringVar(&values.InstanceRoot, "root", "", "Root directory of the instance.")
	flags.StringVar(&values.InstanceID, "instance", "", "Instance id used in logs and for locking.")
	flags.StringVar(&values.Platform, "platform", "", "Natives platform (windows, macosx, linux). Defaults to the running OS.")
	flags.IntVar(&values.Retry.MaxAttempts, "max-retry", 0, "Download attempts per file.")
	flags.StringVar((*string)(&values.Patch.PostPatchPolicy), "post-patch-policy", "", "What a digest mismatch after patching does: warn or error.")
	flags.BoolVar(&values.Force, "force", false, "Download every file even when the cache says it is current.")
	flags.Usage = func() {
		_, _ = fmt.Fprintf(this.stderr, "Usage of jarsmith %s:\n", name)
		flags.PrintDefaults()
	}
	return flags, values
}

func (this *ConfigLoader) parseConfigFile(path string, defaults contracts.Config) (contracts.Config, error) {
	raw, err := this.storage.ReadFile(path)
	if err != nil {
		return defaults, err
	}
	config := defaults
	err = yaml.Unmarshal(raw, &config)
	if err != nil {
		return defaults, fmt.Errorf("%s: %w", path, err)
	}
	config.ConfigPath = path
	return config, nil
}

func (this *ConfigLoader) applyFlags(flags *pflag.FlagSet, values *contracts.Config, config *contracts.Config) {
	if flags.Changed("root") {
		config.InstanceRoot = values.InstanceRoot
	}
	if flags.Changed("instance") {
		config.InstanceID = values.InstanceID
	}
	if flags.Changed("platform") {
		config.Platform = values.Platform
	}
	if flags.Changed("max-retry") {
		config.Retry.MaxAttempts = values.Retry.MaxAttempts
	}
	if flags.Changed("post-patch-policy") {
		config.Patch.PostPatchPolicy = values.Patch.PostPatchPolicy
	}
	config.Force = values.Force
	config.Arguments = flags.Args()
}

func (this *ConfigLoader) validate(config *contracts.Config) error {
	if config.InstanceRoot == "" {
		return blankInstanceRootErr
	}
	config.InstanceRoot = filepath.Clean(config.InstanceRoot)
	if config.InstanceID == "" {
		config.InstanceID = filepath.Base(config.InstanceRoot)
	}
	if config.Platform == "" {
		platform, err := contracts.CurrentPlatform()
		if err != nil {
			return err
		}
		config.Platform = string(platform)
	}
	platform, err := contracts.ParsePlatform(config.Platform)
	if err != nil {
		return err
	}
	config.Platform = string(platform)

	if config.Retry.MaxAttempts < 1 {
		return maxRetryErr
	}
	if config.Retry.InitialBackoff < 0 || config.Retry.MaxBackoff < config.Retry.InitialBackoff {
		return backoffErr
	}
	switch config.Patch.PostPatchPolicy {
	case contracts.WarnOnMismatch, contracts.ErrorOnMismatch:
	default:
		return postPatchPolicyErr
	}
	if config.Catalog.ReleaseListingURL == "" || config.Catalog.HistoryListingURL == "" {
		return blankListingURLErr
	}
	if config.Fetch.LibraryBaseURL == "" {
		return blankLibraryURLErr
	}
	if config.Patch.IndexURL == "" {
		return blankPatchIndexURLErr
	}
	return nil
}

var (
	blankInstanceRootErr  = errors.New("instance root must be populated (--root or instance_root)")
	maxRetryErr           = errors.New("max-retry must be positive")
	backoffErr            = errors.New("retry backoff must not shrink: max_backoff >= initial_backoff >= 0")
	postPatchPolicyErr    = errors.New("post-patch-policy must be warn or error")
	blankListingURLErr    = errors.New("release and history listing URLs should not be blank")
	blankLibraryURLErr    = errors.New("library base URL should not be blank")
	blankPatchIndexURLErr = errors.New("patch index URL should not be blank")
)

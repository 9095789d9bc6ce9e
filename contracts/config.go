package contracts

import "time"

type PostPatchPolicy string

const (
	WarnOnMismatch  PostPatchPolicy = "warn"
	ErrorOnMismatch PostPatchPolicy = "error"
)

type Config struct {
	ConfigPath   string        `yaml:"-"`
	InstanceRoot string        `yaml:"instance_root"`
	InstanceID   string        `yaml:"instance_id"`
	Platform     string        `yaml:"platform"`
	Proxy        string        `yaml:"proxy"`
	Force        bool          `yaml:"-"`
	Arguments    []string      `yaml:"-"`
	Catalog      CatalogConfig `yaml:"catalog"`
	Fetch        FetchConfig   `yaml:"fetch"`
	Retry        RetryConfig   `yaml:"retry"`
	Patch        PatchConfig   `yaml:"patch"`
}

type CatalogConfig struct {
	ReleaseListingURL string            `yaml:"release_listing_url"`
	HistoryListingURL string            `yaml:"history_listing_url"`
	DowngradeIndexURL string            `yaml:"downgrade_index_url"`
	EquivalentTags    map[string]string `yaml:"equivalent_tags"`
}

type FetchConfig struct {
	LibraryBaseURL string   `yaml:"library_base_url"`
	Libraries      []string `yaml:"libraries"`
}

type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

type PatchConfig struct {
	IndexURL        string          `yaml:"index_url"`
	PostPatchPolicy PostPatchPolicy `yaml:"post_patch_policy"`
}

func DefaultConfig() Config {
	return Config{
		InstanceID: "default",
		Catalog: CatalogConfig{
			ReleaseListingURL: "http://s3.amazonaws.com/MinecraftDownload/",
			HistoryListingURL: "http://assets.minecraft.net/",
			DowngradeIndexURL: "http://sonicrules.org/mcnweb.py?pversion=1&list=True",
		},
		Fetch: FetchConfig{
			LibraryBaseURL: "http://s3.amazonaws.com/MinecraftDownload/",
			Libraries:      []string{"lwjgl_util.jar", "jinput.jar", "lwjgl.jar"},
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: time.Second,
			MaxBackoff:     time.Second * 30,
		},
		Patch: PatchConfig{
			IndexURL:        "http://sonicrules.org/mcnweb.py",
			PostPatchPolicy: WarnOnMismatch,
		},
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/smarty/jarsmith/contracts"
	"github.com/smarty/jarsmith/core"
	"github.com/smarty/jarsmith/shell"
)

type App struct {
	instance contracts.Instance
	pipeline *core.Pipeline
}

func NewApp(config contracts.Config, settings contracts.SettingsProvider, progress contracts.ProgressSink) (*App, error) {
	client, err := shell.NewHTTPClient(settings.Settings().ProxyURL)
	if err != nil {
		return nil, err
	}
	platform, err := contracts.ParsePlatform(config.Platform)
	if err != nil {
		return nil, err
	}

	disk := shell.NewDiskFileSystem()
	store := core.NewInstanceStore(disk)
	backoff := core.NewBackoff(config.Retry, time.Sleep)
	fetcher := shell.NewHTTPFetcher(client)
	retrying := core.NewRetryClient(fetcher, backoff)

	pipeline := core.NewPipeline(
		core.NewVersionCatalog(retrying, config.Catalog),
		core.NewFetchCacheEngine(fetcher, disk, store, config.Fetch, platform, backoff),
		core.NewPatchEngine(retrying, disk, store, core.NewBinaryDiffCodec(), config.Patch),
		core.NewArchiveAssembler(disk),
		shell.NewModListOverlayProvider(disk),
		store,
		disk,
		core.NewWorker(progress),
	)
	return &App{
		instance: contracts.Instance{ID: config.InstanceID, RootDir: config.InstanceRoot},
		pipeline: pipeline,
	}, nil
}

func (this *App) Versions(ctx context.Context, config contracts.Config) error {
	entries, err := this.pipeline.Versions(ctx, config.Force)
	if len(entries) == 0 {
		return err
	}
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(writer, "VERSION\tKIND\tRELEASED")
	for _, entry := range entries {
		released := "-"
		if entry.Timestamp > 0 {
			released = time.Unix(entry.Timestamp, 0).UTC().Format(time.DateOnly)
		}
		_, _ = fmt.Fprintf(writer, "%s\t%s\t%s\n", entry.Label, entry.Classification, released)
	}
	return writer.Flush()
}

func (this *App) Update(ctx context.Context, config contracts.Config) error {
	state, err := this.pipeline.Update(ctx, this.instance, argument(config), config.Force)
	return report(state, err)
}

func (this *App) Downgrade(ctx context.Context, config contracts.Config) error {
	target := argument(config)
	if target == "" {
		return errors.New("downgrade needs the version to downgrade to")
	}
	state, err := this.pipeline.Downgrade(ctx, this.instance, target)
	return report(state, err)
}

func (this *App) Rebuild(ctx context.Context, _ contracts.Config) error {
	state, err := this.pipeline.Rebuild(ctx, this.instance)
	return report(state, err)
}

func (this *App) Ensure(ctx context.Context, config contracts.Config) error {
	request := contracts.EnsureRequest{Version: argument(config), Force: config.Force}
	if strings.HasPrefix(request.Version, "downgrade:") {
		request.DowngradeTo, request.Version = strings.TrimPrefix(request.Version, "downgrade:"), ""
	}
	state, err := this.pipeline.EnsureRunnable(ctx, this.instance, request)
	return report(state, err)
}

func argument(config contracts.Config) string {
	if len(config.Arguments) == 0 {
		return ""
	}
	return config.Arguments[0]
}

func report(state contracts.InstanceArtifactState, err error) error {
	if err != nil {
		return err
	}
	fmt.Printf("%s is at version %s (rebuild needed: %t)\n", state.BaseArchivePath, state.CachedVersionLabel, state.NeedsRebuild)
	return nil
}

package core

import (
	"context"
	"log"

	"github.com/smarty/jarsmith/contracts"
)

// Pipeline turns an instance's declared state into a runnable archive. It is
// the only component that applies and persists state transitions.
type Pipeline struct {
	versions  contracts.VersionSource
	fetch     contracts.BaseFetcher
	patch     contracts.Downgrader
	assembler contracts.Assembler
	overlays  contracts.OverlayProvider
	store     contracts.StateStore
	disk      contracts.FileChecker
	worker    *Worker
	logger    *log.Logger
}

func NewPipeline(
	versions contracts.VersionSource,
	fetch contracts.BaseFetcher,
	patch contracts.Downgrader,
	assembler contracts.Assembler,
	overlays contracts.OverlayProvider,
	store contracts.StateStore,
	disk contracts.FileChecker,
	worker *Worker,
) *Pipeline {
	return &Pipeline{
		versions:  versions,
		fetch:     fetch,
		patch:     patch,
		assembler: assembler,
		overlays:  overlays,
		store:     store,
		disk:      disk,
		worker:    worker,
		logger:    log.Default(),
	}
}

func (this *Pipeline) Versions(ctx context.Context, reload bool) ([]contracts.VersionEntry, error) {
	return this.versions.Versions(ctx, reload)
}

func (this *Pipeline) EnsureRunnable(ctx context.Context, instance contracts.Instance, request contracts.EnsureRequest) (state contracts.InstanceArtifactState, err error) {
	if request.DowngradeTo != "" {
		state, err = this.Downgrade(ctx, instance, request.DowngradeTo)
	} else {
		state, err = this.Update(ctx, instance, request.Version, request.Force)
	}
	if err != nil {
		return state, err
	}
	return this.rebuild(ctx, instance, false)
}

// Update makes sure the base archive for label is installed. An empty label
// keeps whatever is cached, or installs the latest stable version.
func (this *Pipeline) Update(ctx context.Context, instance contracts.Instance, label string, force bool) (state contracts.InstanceArtifactState, err error) {
	err = this.worker.Run(ctx, instance.ID, "update", func(ctx context.Context, progress contracts.ProgressSink) error {
		state, err = this.update(ctx, instance, label, force, progress)
		return err
	})
	return state, err
}

func (this *Pipeline) Downgrade(ctx context.Context, instance contracts.Instance, target string) (state contracts.InstanceArtifactState, err error) {
	err = this.worker.Run(ctx, instance.ID, "downgrade", func(ctx context.Context, progress contracts.ProgressSink) error {
		state, err = this.store.Load(instance)
		if err == nil {
			state, err = this.downgrade(ctx, instance, state, target, progress)
		}
		return err
	})
	return state, err
}

// Rebuild reassembles the runnable archive even when nothing has changed.
func (this *Pipeline) Rebuild(ctx context.Context, instance contracts.Instance) (contracts.InstanceArtifactState, error) {
	return this.rebuild(ctx, instance, true)
}

func (this *Pipeline) update(ctx context.Context, instance contracts.Instance, label string, force bool, progress contracts.ProgressSink) (contracts.InstanceArtifactState, error) {
	state, err := this.store.Load(instance)
	if err != nil {
		return state, err
	}
	if label == "" && !force && state.CachedVersionLabel != "" && this.baseAvailable(instance) {
		this.logger.Printf("[INFO] %s: using cached version %s.", instance.ID, state.CachedVersionLabel)
		return state, nil
	}
	if label == "" {
		label = state.CachedVersionLabel
	}
	if label == "" {
		label = contracts.LatestStableLabel
	}

	version, err := this.versions.Resolve(ctx, label)
	if err != nil {
		return state, err
	}
	if !force && version.Label == state.CachedVersionLabel && this.baseAvailable(instance) {
		this.logger.Printf("[INFO] %s: version %s is already installed.", instance.ID, version.Label)
		return state, nil
	}
	if version.Classification == contracts.DowngradeTarget {
		return this.downgradeFrom(ctx, instance, state, version, force, progress)
	}
	return this.install(ctx, instance, state, version, force, progress)
}

// downgradeFrom installs the version the patches apply to before patching.
func (this *Pipeline) downgradeFrom(ctx context.Context, instance contracts.Instance, state contracts.InstanceArtifactState, target contracts.VersionEntry, force bool, progress contracts.ProgressSink) (contracts.InstanceArtifactState, error) {
	if force || state.CachedVersionLabel != target.PatchSource || !this.baseAvailable(instance) {
		source, err := this.versions.Resolve(ctx, target.PatchSource)
		if err != nil {
			return state, err
		}
		state, err = this.install(ctx, instance, state, source, force, progress)
		if err != nil {
			return state, err
		}
	}
	return this.downgrade(ctx, instance, state, target.Label, progress)
}

func (this *Pipeline) install(ctx context.Context, instance contracts.Instance, state contracts.InstanceArtifactState, version contracts.VersionEntry, force bool, progress contracts.ProgressSink) (contracts.InstanceArtifactState, error) {
	result, err := this.fetch.EnsureBase(ctx, instance, version, force, progress)
	if err != nil {
		if !result.Transition.IsEmpty() {
			state, _ = this.commit(instance, state, result.Transition)
		}
		return state, err
	}
	return this.commit(instance, state, result.Transition)
}

func (this *Pipeline) downgrade(ctx context.Context, instance contracts.Instance, state contracts.InstanceArtifactState, target string, progress contracts.ProgressSink) (contracts.InstanceArtifactState, error) {
	result, err := this.patch.Downgrade(ctx, instance, target, progress)
	if err != nil {
		return state, err
	}
	return this.commit(instance, state, result.Transition)
}

func (this *Pipeline) rebuild(ctx context.Context, instance contracts.Instance, force bool) (state contracts.InstanceArtifactState, err error) {
	err = this.worker.Run(ctx, instance.ID, "rebuild", func(ctx context.Context, progress contracts.ProgressSink) error {
		state, err = this.store.Load(instance)
		if err != nil {
			return err
		}
		overlays, err := this.overlays.Overlays(instance)
		if err != nil {
			return contracts.NewError(contracts.FilesystemError, "list overlays", instance.OverlayOrderPath(), err)
		}
		fingerprint := OverlayFingerprint(this.disk, overlays)
		if !force && !state.NeedsRebuild && fingerprint == state.OverlayFingerprint && exists(this.disk, instance.BaseArchivePath()) {
			return nil
		}
		result, err := this.assembler.Rebuild(ctx, instance, overlays, progress)
		if err != nil {
			return err
		}
		state, err = this.commit(instance, state, result.Transition)
		return err
	})
	return state, err
}

func (this *Pipeline) commit(instance contracts.Instance, state contracts.InstanceArtifactState, transition contracts.StateTransition) (contracts.InstanceArtifactState, error) {
	if transition.IsEmpty() {
		return state, nil
	}
	state = transition.Apply(state)
	return state, this.store.Save(instance, state)
}

func (this *Pipeline) baseAvailable(instance contracts.Instance) bool {
	return exists(this.disk, instance.BaseArchivePath()) || exists(this.disk, instance.BackupArchivePath())
}

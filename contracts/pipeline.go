package contracts

import "context"

type VersionSource interface {
	Resolve(ctx context.Context, label string) (VersionEntry, error)
	Versions(ctx context.Context, reload bool) ([]VersionEntry, error)
}

type BaseFetcher interface {
	EnsureBase(ctx context.Context, instance Instance, version VersionEntry, force bool, progress ProgressSink) (FetchResult, error)
}

type Downgrader interface {
	Downgrade(ctx context.Context, instance Instance, target string, progress ProgressSink) (PatchResult, error)
}

type Assembler interface {
	Rebuild(ctx context.Context, instance Instance, overlays []OverlayEntry, progress ProgressSink) (AssemblyResult, error)
}

type StateStore interface {
	Load(instance Instance) (InstanceArtifactState, error)
	Save(instance Instance, state InstanceArtifactState) error
}

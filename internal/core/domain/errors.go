package domain

import "go.trai.ch/zerr"

var (
	// ErrUnknownTarget is returned when an explicitly requested target has no build description.
	ErrUnknownTarget = zerr.New("unknown target")

	// ErrBuildDescriptionUnresolvable is returned when a build description cannot be turned into a build,
	// for example because its base image cannot be found or the recipe is invalid.
	ErrBuildDescriptionUnresolvable = zerr.New("build description unresolvable")

	// ErrBuildExecutionFailed is returned when the build steps of a target fail.
	ErrBuildExecutionFailed = zerr.New("build execution failed")

	// ErrCacheRestoreFailed is returned when a cache entry exists but cannot be restored.
	// It is never fatal: the resolver downgrades it to a cache miss.
	ErrCacheRestoreFailed = zerr.New("cache restore failed")

	// ErrCachePersistFailed is returned when a freshly built image cannot be written to the cache.
	ErrCachePersistFailed = zerr.New("cache persist failed")

	// ErrDownstreamFailed is returned when the build/test procedure run against a ready image fails.
	ErrDownstreamFailed = zerr.New("downstream procedure failed")

	// ErrRunFailed is returned when at least one required target ended in a failed state.
	ErrRunFailed = zerr.New("run failed")

	// ErrNoTargetsDeclared is returned in full-matrix mode when the registry declares no targets.
	ErrNoTargetsDeclared = zerr.New("no targets declared")

	// ErrTooManyTargets is returned when more than one target is passed to the build command.
	ErrTooManyTargets = zerr.New("at most one target may be requested")

	// ErrInvalidTargetID is returned when a target identifier contains invalid characters.
	ErrInvalidTargetID = zerr.New("invalid target identifier")

	// ErrInvalidVersion is returned when the configured image version is not a semantic version.
	ErrInvalidVersion = zerr.New("invalid image version, expected a semantic version such as v0.1.0")

	// ErrInvalidOrganization is returned when the configured organization is empty or malformed.
	ErrInvalidOrganization = zerr.New("invalid image organization")

	// ErrInvalidCriticality is returned when a recipe declares an unknown criticality.
	ErrInvalidCriticality = zerr.New("invalid criticality, expected 'required' or 'best-effort'")

	// ErrRecipeNotFound is returned when a target directory has no recipe file.
	ErrRecipeNotFound = zerr.New("recipe not found")

	// ErrRecipeInvalid is returned when a recipe file cannot be parsed or fails validation.
	ErrRecipeInvalid = zerr.New("invalid recipe")

	// ErrRegistryReadFailed is returned when the registry directory cannot be listed.
	ErrRegistryReadFailed = zerr.New("failed to read target registry")

	// ErrUnsupportedRecipe is returned when an engine cannot build a kind of recipe.
	ErrUnsupportedRecipe = zerr.New("recipe kind not supported by engine")

	// ErrImageUnusable is returned when an image reference does not resolve to usable layers.
	ErrImageUnusable = zerr.New("image is not usable")

	// ErrEngineNotAvailable is returned when no container engine can be reached.
	ErrEngineNotAvailable = zerr.New("container engine not available")

	// ErrUnknownEngine is returned when the configured engine name is not recognized.
	ErrUnknownEngine = zerr.New("unknown container engine, expected auto, docker, podman or containerd")

	// ErrInvalidTransition is returned when a target lifecycle receives an event its current state does not accept.
	ErrInvalidTransition = zerr.New("invalid target state transition")

	// ErrCacheEntryNotFound is returned when restoring a target that has no cache entry.
	ErrCacheEntryNotFound = zerr.New("cache entry not found")

	// ErrConfigReadFailed is returned when the settings file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the settings cannot be decoded.
	ErrConfigParseFailed = zerr.New("failed to parse config file")
)

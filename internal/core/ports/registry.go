// Package ports defines the core interfaces for the application.
package ports

import "go.trai.ch/crossbox/internal/core/domain"

// RegistryLoader discovers the declared targets and their build descriptions.
//
//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=mocks/mock_registry.go -package=mocks
type RegistryLoader interface {
	// Load scans root and returns the registry of declared targets.
	//
	// Targets whose recipe cannot be parsed are still declared; their load
	// error is returned by Registry.Describe. Load itself only fails when
	// root cannot be read.
	Load(root string) (*domain.Registry, error)
}

// TargetRegistry is the read-only view of declared targets consumed by the orchestrator.
type TargetRegistry interface {
	// ListDeclaredTargets returns every declared target in lexicographic order.
	ListDeclaredTargets() []domain.TargetID
	// Describe returns the build description of a target, or ErrUnknownTarget.
	Describe(id domain.TargetID) (*domain.BuildDescription, error)
}

var _ TargetRegistry = (*domain.Registry)(nil)

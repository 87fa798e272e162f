package ports

import (
	"context"
	"io"
)

// DownstreamRequest describes one run of the build/test procedure against a ready image.
type DownstreamRequest struct {
	Target  string
	Image   string
	Engine  string
	Command string
	Workdir string
	Stdout  io.Writer
	Stderr  io.Writer
}

// DownstreamRunner runs the project's build/test procedure once per ready image.
//
//go:generate go run go.uber.org/mock/mockgen -source=downstream.go -destination=mocks/mock_downstream.go -package=mocks
type DownstreamRunner interface {
	// Run executes the procedure and returns an error when it exits unsuccessfully.
	Run(ctx context.Context, req DownstreamRequest) error
}

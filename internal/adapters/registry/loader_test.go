package registry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/crossbox/internal/adapters/fs"
	"go.trai.ch/crossbox/internal/adapters/registry"
	"go.trai.ch/crossbox/internal/core/domain"
	"go.trai.ch/crossbox/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func writeRecipe(t *testing.T, root, target, file, content string) {
	t.Helper()
	dir := filepath.Join(root, target)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o600))
}

func newLoader(t *testing.T) *registry.Loader {
	t.Helper()
	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(gomock.Any()).AnyTimes()
	return registry.NewLoader(fs.NewHasher(fs.NewWalker()), mockLogger)
}

func TestLoad_StructuredYAML(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "aarch64-unknown-linux-gnu", "toolchain.yaml", `
base: ubuntu:22.04
platform: linux/amd64
packages:
  install: [gcc-aarch64-linux-gnu, libc6-dev-arm64-cross]
env:
  CARGO_TARGET_AARCH64_UNKNOWN_LINUX_GNU_LINKER: aarch64-linux-gnu-gcc
workdir: /project
steps:
  - run: |
      set -ex
      echo "toolchain ready" > /etc/crossbox-ready
  - run: ln -s /usr/aarch64-linux-gnu /sysroot
    workdir: /usr
    env:
      LC_ALL: C
`)

	reg, err := newLoader(t).Load(root)
	require.NoError(t, err)

	assert.Equal(t, []domain.TargetID{"aarch64-unknown-linux-gnu"}, reg.ListDeclaredTargets())

	desc, err := reg.Describe("aarch64-unknown-linux-gnu")
	require.NoError(t, err)

	assert.Equal(t, domain.RecipeStructured, desc.Kind)
	assert.Equal(t, "toolchain.yaml", desc.File)
	assert.Equal(t, domain.CriticalityRequired, desc.Criticality)
	assert.Len(t, desc.Digest, 16)

	require.NotNil(t, desc.Recipe)
	assert.Equal(t, "ubuntu:22.04", desc.Recipe.Base)
	assert.Equal(t, "linux/amd64", desc.Recipe.Platform)
	assert.Equal(t, domain.PackageManagerApt, desc.Recipe.Manager)
	assert.Equal(t, []string{"gcc-aarch64-linux-gnu", "libc6-dev-arm64-cross"}, desc.Recipe.Packages)
	require.Len(t, desc.Recipe.Steps, 2)
	assert.Equal(t, "/usr", desc.Recipe.Steps[1].Workdir)
	assert.Equal(t, "C", desc.Recipe.Steps[1].Env["LC_ALL"])
}

func TestLoad_StructuredTOML(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "x86_64-unknown-linux-musl", "toolchain.toml", `
base = "alpine:3.19"
criticality = "best-effort"

[packages]
manager = "apk"
install = ["musl-dev", "gcc"]

[[steps]]
run = "rustup target add x86_64-unknown-linux-musl"
`)

	reg, err := newLoader(t).Load(root)
	require.NoError(t, err)

	desc, err := reg.Describe("x86_64-unknown-linux-musl")
	require.NoError(t, err)
	assert.Equal(t, domain.CriticalityBestEffort, desc.Criticality)
	assert.Equal(t, domain.PackageManagerApk, desc.Recipe.Manager)
	require.Len(t, desc.Recipe.Steps, 1)
}

func TestLoad_Dockerfile(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "armv7-unknown-linux-gnueabihf", "Dockerfile", "FROM ubuntu:16.04\nRUN apt-get update\n")
	writeRecipe(t, root, "armv7-unknown-linux-gnueabihf", "common.sh", "set -ex\n")

	reg, err := newLoader(t).Load(root)
	require.NoError(t, err)

	desc, err := reg.Describe("armv7-unknown-linux-gnueabihf")
	require.NoError(t, err)
	assert.Equal(t, domain.RecipeDockerfile, desc.Kind)
	assert.Equal(t, []string{"ubuntu:16.04"}, desc.BaseImages())
	assert.Nil(t, desc.Recipe)
}

func TestLoad_RecipePriority(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "i686-unknown-linux-gnu", "Dockerfile", "FROM ubuntu:16.04\n")
	writeRecipe(t, root, "i686-unknown-linux-gnu", "toolchain.yaml", "base: ubuntu:22.04\n")

	reg, err := newLoader(t).Load(root)
	require.NoError(t, err)

	desc, err := reg.Describe("i686-unknown-linux-gnu")
	require.NoError(t, err)
	assert.Equal(t, "toolchain.yaml", desc.File)
}

func TestLoad_InvalidRecipesStayDeclared(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"missing base", "toolchain.yaml", "packages:\n  install: [gcc]\n"},
		{"unknown field", "toolchain.yaml", "base: ubuntu:22.04\nimage: nope\n"},
		{"broken shell", "toolchain.yaml", "base: ubuntu:22.04\nsteps:\n  - run: 'if then fi ('\n"},
		{"empty step", "toolchain.yaml", "base: ubuntu:22.04\nsteps:\n  - run: ''\n"},
		{"bad platform", "toolchain.yaml", "base: ubuntu:22.04\nplatform: 'not a platform!'\n"},
		{"bad criticality", "toolchain.yaml", "base: ubuntu:22.04\ncriticality: sometimes\n"},
		{"bad manager", "toolchain.yaml", "base: ubuntu:22.04\npackages:\n  manager: pacman\n  install: [gcc]\n"},
		{"bad package", "toolchain.yaml", "base: ubuntu:22.04\npackages:\n  install: ['gcc; rm -rf /']\n"},
		{"bad env", "toolchain.yaml", "base: ubuntu:22.04\nenv:\n  'MY VAR': x\n"},
		{"empty", "toolchain.yaml", ""},
		{"bad toml", "toolchain.toml", "base = \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeRecipe(t, root, "mips-unknown-linux-gnu", tt.file, tt.content)
			writeRecipe(t, root, "x86_64-unknown-linux-gnu", "toolchain.yaml", "base: ubuntu:22.04\n")

			reg, err := newLoader(t).Load(root)
			require.NoError(t, err)

			assert.Equal(t, []domain.TargetID{"mips-unknown-linux-gnu", "x86_64-unknown-linux-gnu"}, reg.ListDeclaredTargets())

			_, err = reg.Describe("mips-unknown-linux-gnu")
			require.ErrorIs(t, err, domain.ErrRecipeInvalid)

			_, err = reg.Describe("x86_64-unknown-linux-gnu")
			require.NoError(t, err)
		})
	}
}

func TestLoad_SkipsNonTargets(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, ".hidden", "toolchain.yaml", "base: ubuntu:22.04\n")
	writeRecipe(t, root, "Not_A_Target", "toolchain.yaml", "base: ubuntu:22.04\n")
	writeRecipe(t, root, "no-recipe", "README.md", "nothing here\n")
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("registry"), 0o600))

	ctrl := gomock.NewController(t)
	mockLogger := mocks.NewMockLogger(ctrl)
	mockLogger.EXPECT().Warn(gomock.Any()).Times(2)

	reg, err := registry.NewLoader(fs.NewHasher(fs.NewWalker()), mockLogger).Load(root)
	require.NoError(t, err)
	assert.Empty(t, reg.ListDeclaredTargets())
}

func TestLoad_MissingRoot(t *testing.T) {
	_, err := newLoader(t).Load(filepath.Join(t.TempDir(), "missing"))
	require.ErrorIs(t, err, domain.ErrRegistryReadFailed)
}

func TestLoad_DigestTracksDirectoryContent(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "powerpc-unknown-linux-gnu", "toolchain.yaml", "base: ubuntu:22.04\n")

	loader := newLoader(t)
	reg, err := loader.Load(root)
	require.NoError(t, err)
	before, err := reg.Describe("powerpc-unknown-linux-gnu")
	require.NoError(t, err)

	writeRecipe(t, root, "powerpc-unknown-linux-gnu", "patch.sh", "echo patched\n")

	reg, err = loader.Load(root)
	require.NoError(t, err)
	after, err := reg.Describe("powerpc-unknown-linux-gnu")
	require.NoError(t, err)

	assert.NotEqual(t, before.Digest, after.Digest)
}

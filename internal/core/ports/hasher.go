package ports

// Hasher computes content digests of build descriptions.
//
//go:generate go run go.uber.org/mock/mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// ComputeDirDigest hashes every regular file under dir, including relative paths.
	ComputeDirDigest(dir string) (string, error)
}

package registry

import "context"

//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks

// Client is the remote registry port. Implementations return *ServiceError
// for errors reported by the registry and *ProviderError for transport
// failures.
type Client interface {
	// Lookup fetches the registration record of req.CalledFor.
	Lookup(ctx context.Context, req LookupRequest) (*Registration, error)

	// Version returns the registry service version string.
	Version(ctx context.Context) (string, error)
}

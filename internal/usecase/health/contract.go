package health

import "context"

// StoreChecker reports whether the passage store is loaded and usable.
type StoreChecker interface {
	Ready() error
}

// ProviderChecker verifies connectivity to the AI provider.
type ProviderChecker interface {
	HealthCheck(ctx context.Context) error
}

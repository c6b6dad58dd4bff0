package station

import "context"

// Source retrieves the raw response body for one parameter.
type Source interface {
	Name() string
	Fetch(ctx context.Context, spec ParameterSpec) ([]byte, error)
}

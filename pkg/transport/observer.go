package transport

import "context"

// Observer provides hooks for channel lifecycle, metrics, and tracing.
// Implementations should be lightweight; callbacks may run on hot paths.
type Observer interface {
	OnChannelStart()
	OnChannelEnd()
	OnChannelFailed(err error)
	OnHandshakeStart(ctx context.Context) (context.Context, func(error))
	OnSeal(ctx context.Context, plaintextLen int) (context.Context, func(error))
	OnOpen(ctx context.Context, ciphertextLen int) (context.Context, func(error))
	OnAuthFailure()
	OnProtocolError(err error)
}

// ObserverFactory builds a per-channel observer for the given role,
// "client" or "server".
type ObserverFactory func(role string) Observer

func observerFromConfig(config Config, role string) Observer {
	if config.ObserverFactory != nil {
		return config.ObserverFactory(role)
	}
	return config.Observer
}

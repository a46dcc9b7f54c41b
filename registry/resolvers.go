package registry

import "github.com/layer-3/walletsso/core"

// Resolver looks a wallet's provider up in the host environment
type Resolver func(env core.Environment) (core.Object, bool)

// Flag resolves to the global when its boolean flag is set, e.g. ethereum.isMetaMask
func Flag(global, flag string) Resolver {
	return func(env core.Environment) (core.Object, bool) {
		obj, ok := env.Global(global)
		if !ok {
			return nil, false
		}
		if _, ok := obj.Get(flag); !ok {
			return nil, false
		}
		return obj, true
	}
}

// Namespace resolves to a provider nested under a global, e.g. cardano.eternl
func Namespace(global, key string) Resolver {
	return func(env core.Environment) (core.Object, bool) {
		obj, ok := env.Global(global)
		if !ok {
			return nil, false
		}
		return obj.Get(key)
	}
}

// Global resolves to a provider injected directly as a global
func Global(global string) Resolver {
	return func(env core.Environment) (core.Object, bool) {
		return env.Global(global)
	}
}

// FirstOf tries each resolver in order and uses the first that resolves
func FirstOf(resolvers ...Resolver) Resolver {
	return func(env core.Environment) (core.Object, bool) {
		for _, r := range resolvers {
			if obj, ok := r(env); ok {
				return obj, true
			}
		}
		return nil, false
	}
}

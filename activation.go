package servhub

import "maps"

// ReservedArgPrefix marks activation-argument keys owned by the transport
// and host machinery. Application code must not repurpose keys under it.
const ReservedArgPrefix = "__servicehub__"

const (
	// ArgChannelName carries the derived channel name a remote provider
	// listens on.
	ArgChannelName = ReservedArgPrefix + ".channel"
	// ArgRequestedVersion echoes the caller's requested version so a
	// version-agnostic provider can interpret it.
	ArgRequestedVersion = ReservedArgPrefix + ".version"
	// ArgHostPID carries the hosting process id when known.
	ArgHostPID = ReservedArgPrefix + ".pid"
)

// ActivationOptions travel with a resolution request. The zero value is
// valid. Values are treated as immutable; WithActivationArgument derives new
// ones rather than mutating in place.
type ActivationOptions struct {
	ClientCulture   string
	ClientUICulture string

	// ActivationArguments is a flat string map handed to the provider.
	ActivationArguments map[string]string

	// ClientCredentials identify the requesting client to the provider.
	ClientCredentials map[string]string
}

// WithActivationArgument returns a copy of the options carrying the argument.
// Adding is idempotent by key: an existing entry is preserved, never
// overwritten, so transport hints cannot clobber caller-supplied values and
// vice versa.
func (o ActivationOptions) WithActivationArgument(key, value string) ActivationOptions {
	if _, exists := o.ActivationArguments[key]; exists {
		return o
	}
	clone := o
	clone.ActivationArguments = make(map[string]string, len(o.ActivationArguments)+1)
	maps.Copy(clone.ActivationArguments, o.ActivationArguments)
	clone.ActivationArguments[key] = value
	return clone
}

// Argument looks up an activation argument.
func (o ActivationOptions) Argument(key string) (string, bool) {
	v, ok := o.ActivationArguments[key]
	return v, ok
}

// withCredentials fills in credentials only when the caller supplied none.
func (o ActivationOptions) withCredentials(creds map[string]string) ActivationOptions {
	if o.ClientCredentials != nil || len(creds) == 0 {
		return o
	}
	clone := o
	clone.ClientCredentials = maps.Clone(creds)
	return clone
}

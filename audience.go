package servhub

import "strings"

// Audience is a visibility class: which kinds of callers may resolve a
// registered service. Values combine as flags.
type Audience uint8

const (
	// AudienceLocal admits callers living in the same process or machine.
	AudienceLocal Audience = 1 << iota
	// AudienceRemoteExclusiveClient admits a remote party acting only as a
	// client of this host.
	AudienceRemoteExclusiveClient
	// AudienceRemoteExclusiveServer admits a remote party acting only as a
	// server for this host.
	AudienceRemoteExclusiveServer
)

const (
	AudienceNone   Audience = 0
	AudienceRemote          = AudienceRemoteExclusiveClient | AudienceRemoteExclusiveServer
	// AudienceAllClients admits every caller kind; guests still require
	// AllowGuestClients on the registration.
	AudienceAllClients = AudienceLocal | AudienceRemote
)

func (a Audience) String() string {
	if a == AudienceNone {
		return "none"
	}
	var parts []string
	if a&AudienceLocal != 0 {
		parts = append(parts, "local")
	}
	if a&AudienceRemoteExclusiveClient != 0 {
		parts = append(parts, "remote-client")
	}
	if a&AudienceRemoteExclusiveServer != 0 {
		parts = append(parts, "remote-server")
	}
	return strings.Join(parts, "|")
}

// ServiceRegistration governs who may resolve a service name. It is fixed at
// registration time; changing it requires an explicit ForceRegister.
type ServiceRegistration struct {
	Audience          Audience
	AllowGuestClients bool
}

// Caller describes the party issuing a resolution request.
type Caller struct {
	Audience Audience
	Guest    bool
}

// LocalCaller is the common case: a caller in the same process or machine.
var LocalCaller = Caller{Audience: AudienceLocal}

// admits reports whether the caller passes the visibility gate. The caller's
// audience flags must be a subset of the registration's; guests additionally
// need AllowGuestClients.
func (r ServiceRegistration) admits(c Caller) bool {
	if c.Audience == AudienceNone {
		return false
	}
	if c.Guest && !r.AllowGuestClients {
		return false
	}
	return c.Audience&^r.Audience == 0
}

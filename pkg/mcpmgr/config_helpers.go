package mcpmgr

// Lightweight helpers for classifying ServerConfig values by transport family.

// TransportKind identifies the transport family used by a ServerConfig.
type TransportKind string

const (
	TransportStdio TransportKind = "stdio"
	TransportHTTP  TransportKind = "http"
)

// TransportOf returns the transport kind for cfg. A URL always wins over a
// command. Returns an empty string when neither is present.
func TransportOf(cfg ServerConfig) TransportKind {
	switch {
	case cfg.URL != "":
		return TransportHTTP
	case cfg.Command != "":
		return TransportStdio
	default:
		return ""
	}
}

// IsStdio reports whether cfg launches a subprocess.
func IsStdio(cfg ServerConfig) bool {
	return TransportOf(cfg) == TransportStdio
}

// IsHTTP reports whether cfg targets an HTTP endpoint.
func IsHTTP(cfg ServerConfig) bool {
	return TransportOf(cfg) == TransportHTTP
}

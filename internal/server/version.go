package server

// ServerVersion is overridden at build time with -ldflags.
var ServerVersion = "0.1.0-dev"

const ApiVersion = "v1"

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

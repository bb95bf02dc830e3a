package common

// Version is the build version, overridden at link time via
// -ldflags "-X github.com/seal-labs/ibte/common.Version=...".
var Version = "dev"

// Package common holds small pieces shared across the binaries: logger setup
// and the build version string.
package common

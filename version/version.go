package version

import "fmt"

const (
	appMajor = 0
	appMinor = 1
	appPatch = 0

	userAgentName = "iouledger-go"
)

// String returns the application version as a properly formed string.
func String() string {
	return fmt.Sprintf("%d.%d.%d", appMajor, appMinor, appPatch)
}

// UserAgent returns the user agent advertised to other peers.
func UserAgent() string {
	return fmt.Sprintf("/%s:%s/", userAgentName, String())
}

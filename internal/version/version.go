// ABOUTME: Version and product identification constants
// ABOUTME: Used for logging and the signaling handshake
package version

const (
	// Version is the player software version
	Version = "0.3.0"

	// Product is the product name
	Product = "Cadenza Player"

	// Manufacturer identifies the project
	Manufacturer = "Cadenza Audio"
)

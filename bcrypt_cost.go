//go:build !race

package auth

// Hashing is intentionally expensive; treat it as a bounded-latency
// operation when sizing request timeouts.
func passwordHashCost() int {
	return 12
}

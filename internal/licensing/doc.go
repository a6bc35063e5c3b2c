// Package licensing holds the deterministic pieces of license activation:
// the per-product activation key derivation, validity/expiration arithmetic
// and the clock used to evaluate it. Nothing here touches storage.
package licensing

// internal/licensing/keygen.go
package licensing

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

const (
	keyLength    = 16
	keyGroupSize = 4
)

// ProductName is one of the licensed desktop applications sold in the store.
type ProductName string

const (
	ProductDesigner  ProductName = "CuBIT Designer"
	ProductAnalyzer  ProductName = "CuBIT Analyzer"
	ProductSimulator ProductName = "CuBIT Simulator"
)

// productTags maps each licensed product to the tag mixed into the hash input.
var productTags = map[ProductName]string{
	ProductDesigner:  "CBD-DESIGNER",
	ProductAnalyzer:  "CBD-ANALYZER",
	ProductSimulator: "CBD-SIMULATOR",
}

// Products returns the licensed products in a stable order.
func Products() []ProductName {
	return []ProductName{ProductDesigner, ProductAnalyzer, ProductSimulator}
}

// IsValidProduct reports whether name belongs to the licensed product registry.
func IsValidProduct(name string) bool {
	_, ok := productTags[ProductName(name)]
	return ok
}

// ProductTag returns the salt for a product and whether the product is known.
func ProductTag(name ProductName) (string, bool) {
	tag, ok := productTags[name]
	return tag, ok
}

// KeyDeriver maps a system identifier to an activation key for a product.
// It returns an empty string when the product is not licensable.
type KeyDeriver func(systemIdentifier string, product ProductName) string

// DeriveKey produces the activation key for systemIdentifier under product.
// Callers must reject empty identifiers before calling.
func DeriveKey(systemIdentifier string, product ProductName) string {
	tag, ok := ProductTag(product)
	if !ok {
		return ""
	}
	return DeriveKeyWithTag(systemIdentifier, tag)
}

// DeriveKeyWithTag runs the derivation with an explicit product tag:
// uppercase, SHA-256, base36, fixed 16 character window, grouped by four.
func DeriveKeyWithTag(systemIdentifier, tag string) string {
	input := strings.ToUpper(systemIdentifier)
	if tag != "" {
		input = tag + ":" + input
	}

	sum := sha256.Sum256([]byte(input))
	hexDigest := strings.ToUpper(hex.EncodeToString(sum[:]))

	n, _ := new(big.Int).SetString(hexDigest, 16)
	encoded := strings.ToUpper(n.Text(36))

	if len(encoded) < keyLength {
		encoded = strings.Repeat("0", keyLength-len(encoded)) + encoded
	}
	encoded = encoded[:keyLength]

	return FormatKey(encoded)
}

// FormatKey inserts a dash every four characters.
func FormatKey(raw string) string {
	var b strings.Builder
	b.Grow(len(raw) + len(raw)/keyGroupSize)
	for i, r := range raw {
		if i > 0 && i%keyGroupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeKey trims and uppercases a key typed by a user and restores the
// dash grouping when it was omitted.
func NormalizeKey(key string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(key))
	if !strings.Contains(cleaned, "-") && len(cleaned) == keyLength {
		return FormatKey(cleaned)
	}
	return cleaned
}

// NormalizeSystemIdentifier is applied to every identifier before it is stored
// or compared so the (systemIdentifier, productName) pair is case-insensitive,
// matching the key derivation.
func NormalizeSystemIdentifier(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

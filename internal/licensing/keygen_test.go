package licensing

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keyPattern = regexp.MustCompile(`^[0-9A-Z]{4}-[0-9A-Z]{4}-[0-9A-Z]{4}-[0-9A-Z]{4}$`)

func TestDeriveKeyDeterministic(t *testing.T) {
	for _, product := range Products() {
		first := DeriveKey("MB-1234-ABCD", product)
		second := DeriveKey("MB-1234-ABCD", product)
		assert.Equal(t, first, second, product)
	}
}

func TestDeriveKeyCaseInsensitive(t *testing.T) {
	id := "Mb-98ab-CdEf-0011"
	for _, product := range Products() {
		mixed := DeriveKey(id, product)
		assert.Equal(t, mixed, DeriveKey(strings.ToUpper(id), product))
		assert.Equal(t, mixed, DeriveKey(strings.ToLower(id), product))
	}
}

func TestDeriveKeyFormat(t *testing.T) {
	inputs := []string{"a", "X", "0", "system-identifier", strings.Repeat("z", 512), "ünïcödé-host"}
	for _, product := range Products() {
		for _, in := range inputs {
			key := DeriveKey(in, product)
			require.Len(t, key, 19, in)
			assert.Regexp(t, keyPattern, key)
			assert.Equal(t, byte('-'), key[4])
			assert.Equal(t, byte('-'), key[9])
			assert.Equal(t, byte('-'), key[14])
		}
	}
}

func TestDeriveKeySensitivity(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-"

	seen := make(map[string]string)
	for i := 0; i < 2000; i++ {
		b := make([]byte, 8+rng.Intn(24))
		for j := range b {
			b[j] = alphabet[rng.Intn(len(alphabet))]
		}
		id := string(b)
		if _, dup := seen[id]; dup {
			continue
		}
		key := DeriveKey(id, ProductDesigner)
		for other, otherKey := range seen {
			if otherKey == key {
				t.Fatalf("collision between %q and %q: %s", id, other, key)
			}
		}
		seen[id] = key
	}

	assert.NotEqual(t, DeriveKey("HOST-0001", ProductDesigner), DeriveKey("HOST-0002", ProductDesigner))
}

func TestDeriveKeyProductIsolation(t *testing.T) {
	id := "WORKSTATION-42"
	products := Products()
	for i := range products {
		for j := range products {
			if i == j {
				continue
			}
			assert.NotEqual(t, DeriveKey(id, products[i]), DeriveKey(id, products[j]),
				"%s vs %s", products[i], products[j])
		}
	}
}

func TestDeriveKeyUnknownProduct(t *testing.T) {
	assert.Empty(t, DeriveKey("HOST", ProductName("CuBIT Unknown")))
}

func TestDeriveKeyWithTagPadsShortEncodings(t *testing.T) {
	// An empty tag still yields the fixed 16 character window.
	key := DeriveKeyWithTag("HOST", "")
	assert.Regexp(t, keyPattern, key)
	assert.NotEqual(t, key, DeriveKeyWithTag("HOST", "CBD-DESIGNER"))
}

func TestFormatKey(t *testing.T) {
	assert.Equal(t, "ABCD-EFGH-IJKL-MNOP", FormatKey("ABCDEFGHIJKLMNOP"))
	assert.Equal(t, "AB", FormatKey("AB"))
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "ABCD-EFGH-IJKL-MNOP", NormalizeKey("  abcdefghijklmnop "))
	assert.Equal(t, "ABCD-EFGH-IJKL-MNOP", NormalizeKey("abcd-efgh-ijkl-mnop"))
}

func TestProductRegistry(t *testing.T) {
	assert.True(t, IsValidProduct("CuBIT Designer"))
	assert.False(t, IsValidProduct("cubit designer"))

	tags := make(map[string]bool)
	for _, p := range Products() {
		tag, ok := ProductTag(p)
		require.True(t, ok)
		assert.False(t, tags[tag], "tag reused: %s", tag)
		tags[tag] = true
		assert.Equal(t, DeriveKeyWithTag("HOST-1", tag), DeriveKey("host-1", p))
	}
}

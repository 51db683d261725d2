package consul

import (
	"testing"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
)

func TestEventIDToIndex(t *testing.T) {
	testCases := []struct {
		name     string
		id       string
		expected uint64
	}{
		{"known_vector", "bf24ae36-d240-9666-7343-1a87346d2f94", 14728939782502463986},
		{"all_zero", "00000000-0000-0000-0000-000000000000", 0},
		{"symmetric_halves", "01234567-89ab-cdef-0123-456789abcdef", 0},
		{"uppercase_hex", "BF24AE36-D240-9666-7343-1A87346D2F94", 14728939782502463986},
		{"empty", "", 0},
		{"short", "bf24ae36-d240-9666", 0},
		{"too_long", "bf24ae36-d240-9666-7343-1a87346d2f94a", 0},
		{"bad_hex", "zf24ae36-d240-9666-7343-1a87346d2f94", 0},
		{"wrong_hyphens", "bf24ae36d-240-9666-7343-1a87346d2f94", 14728939782502463986},
		{"missing_hyphens", "bf24ae36xd240x9666x7343x1a87346d2f94", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, EventIDToIndex(tc.id))
		})
	}
}

func TestEventIDToIndex_Deterministic(t *testing.T) {
	id := "5c8b4f9e-1a2b-3c4d-5e6f-7a8b9c0d1e2f"
	first := EventIDToIndex(id)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, EventIDToIndex(id))
	}
}

func TestEventIDToIndex_MatchesConsulClient(t *testing.T) {
	event := (&api.Client{}).Event()
	ids := []string{
		"bf24ae36-d240-9666-7343-1a87346d2f94",
		"5c8b4f9e-1a2b-3c4d-5e6f-7a8b9c0d1e2f",
		"ffffffff-ffff-ffff-0000-000000000000",
	}
	for _, id := range ids {
		assert.Equal(t, event.IDToIndex(id), EventIDToIndex(id), id)
	}
}

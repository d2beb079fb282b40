package quorum

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredQuorum(t *testing.T) {
	tests := []struct {
		name      string
		method    string
		params    []any
		threshold int
		want      int
	}{
		{"getLogs always requires threshold", "eth_getLogs", nil, 3, 3},
		{"getBlockByNumber numeric tag requires threshold", "eth_getBlockByNumber", []any{"0x10", false}, 3, 3},
		{"getBlockByNumber latest needs only one", "eth_getBlockByNumber", []any{"latest", false}, 3, 1},
		{"call numeric block tag requires threshold", "eth_call", []any{map[string]any{}, "0x10"}, 2, 2},
		{"call latest needs only one", "eth_call", []any{map[string]any{}, "latest"}, 2, 1},
		{"unrelated method always needs one", "eth_chainId", nil, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredQuorum(tt.method, tt.params, tt.threshold))
		})
	}
}

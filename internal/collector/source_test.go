package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveWins(t *testing.T) {
	tests := []struct {
		name       string
		onChain    int64
		offChain   int64
		wantValue  int64
		wantSource Source
	}{
		{"on-chain wins when positive", 12, 40, 12, SourceOnChain},
		{"off-chain when on-chain zero", 0, 7, 7, SourceOffChain},
		{"none when both zero", 0, 0, 0, SourceNone},
		{"on-chain preferred even when smaller", 3, 99, 3, SourceOnChain},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, src := resolveWins(tc.onChain, tc.offChain)
			assert.Equal(t, tc.wantValue, v)
			assert.Equal(t, tc.wantSource, src)
		})
	}
}

func TestResolveRewards(t *testing.T) {
	tests := []struct {
		name       string
		onChainOK  bool
		onChain    int64
		offChain   int64
		wantValue  int64
		wantSource Source
	}{
		{"successful zero is authoritative", true, 0, 55, 0, SourceOnChain},
		{"successful positive is authoritative", true, 9, 55, 9, SourceOnChain},
		{"failed call falls back", false, 0, 55, 55, SourceOffChain},
		{"failed call with nothing off-chain", false, 0, 0, 0, SourceOffChain},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v, src := resolveRewards(tc.onChainOK, tc.onChain, tc.offChain)
			assert.Equal(t, tc.wantValue, v)
			assert.Equal(t, tc.wantSource, src)
		})
	}
}

package collector

// Source tags where a reconciled metric value came from.
type Source string

const (
	SourceOnChain  Source = "on"
	SourceOffChain Source = "off"
	SourceNone     Source = "none"
)

// resolveWins applies the sourcing precedence for win counters: a positive
// on-chain value is authoritative, otherwise fall back to off-chain.
func resolveWins(onChain, offChain int64) (int64, Source) {
	if onChain > 0 {
		return onChain, SourceOnChain
	}
	if offChain > 0 {
		return offChain, SourceOffChain
	}
	return 0, SourceNone
}

// resolveRewards prefers the on-chain value whenever the on-chain call
// succeeded, even when it returned zero; only a failed call falls back to
// the off-chain figure.
func resolveRewards(onChainOK bool, onChain, offChain int64) (int64, Source) {
	if onChainOK {
		return onChain, SourceOnChain
	}
	return offChain, SourceOffChain
}

package quorum

// RequiredQuorum computes Q for one logical call per §4.4's policy table. Methods whose
// honest answer is a function of finalized-enough chain state require agreement; methods
// whose answer legitimately varies across nodes (head position, mempool) must not, or the
// router would deadlock waiting for agreement that can never arrive.
func RequiredQuorum(method string, params []any, configuredThreshold int) int {
	switch method {
	case "eth_getLogs":
		return configuredThreshold
	case "eth_getBlockByNumber":
		if hasNumericBlockTag(params, 0) {
			return configuredThreshold
		}
		return 1
	case "eth_call":
		if hasNumericBlockTag(params, 1) {
			return configuredThreshold
		}
		return 1
	default:
		return 1
	}
}

// hasNumericBlockTag reports whether params[idx] is a block tag expressed as a numeric hex
// string rather than a symbolic tag like "latest" or "pending".
func hasNumericBlockTag(params []any, idx int) bool {
	if idx >= len(params) {
		return false
	}
	tag, ok := params[idx].(string)
	if !ok || len(tag) < 3 || tag[0] != '0' || tag[1] != 'x' {
		return false
	}
	for _, c := range tag[2:] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

package services

// ActivationDiff compares the environment a previous `poly activate` call
// set against the environment the current resolution would set, so a
// shell wrapper can unset variables that are no longer present (the
// shell-profile mutation itself is out of scope; only the diff is —
// SPEC_FULL.md §3, moonrepo/proto's `_PROTO_ACTIVATED_ENV` bookkeeping).
func ActivationDiff(prev, next map[string]string) (toSet, toUnset map[string]string) {
	toSet = make(map[string]string, len(next))
	toUnset = make(map[string]string)

	for k, v := range next {
		if existing, ok := prev[k]; !ok || existing != v {
			toSet[k] = v
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			toUnset[k] = ""
		}
	}
	return toSet, toUnset
}

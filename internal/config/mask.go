package config

import "regexp"

// MaskedValue replaces sensitive values in snapshots. A CONFIG_SET carrying
// this exact string for a field means "keep the current value".
const MaskedValue = "******"

// sensitiveKey matches config field names whose values must never leave the
// process in cleartext.
var sensitiveKey = regexp.MustCompile(`(?i)api.?key|secret|password|token|credential|auth|private.?key`)

// IsSensitiveKey reports whether a config field name holds a credential.
func IsSensitiveKey(key string) bool {
	return sensitiveKey.MatchString(key)
}

// maskMap returns a deep copy of m with every sensitive string value replaced
// by [MaskedValue]. Nested maps are masked recursively; non-map, non-string
// values under a sensitive key are masked too since their rendering could
// leak the credential.
func maskMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch nested := v.(type) {
		case map[string]any:
			out[k] = maskMap(nested)
		default:
			if IsSensitiveKey(k) {
				out[k] = MaskedValue
			} else {
				out[k] = v
			}
		}
	}
	return out
}

// mergeKeepMasked overlays patch onto current, returning a new map. A patch
// value equal to [MaskedValue] keeps the current value, so a client can round-
// trip a CONFIG_SNAPSHOT back through CONFIG_SET without wiping credentials.
// Nested maps merge recursively; any other patch value replaces outright.
func mergeKeepMasked(current, patch map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(patch))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range patch {
		if v == MaskedValue {
			if _, ok := current[k]; ok {
				continue
			}
			// Masked value for a field that does not exist yet: store
			// nothing rather than the placeholder.
			continue
		}
		patchNested, patchIsMap := v.(map[string]any)
		curNested, curIsMap := current[k].(map[string]any)
		if patchIsMap && curIsMap {
			out[k] = mergeKeepMasked(curNested, patchNested)
			continue
		}
		out[k] = v
	}
	return out
}

package walletflow

import (
	"fmt"
	"strings"
)

// scanPayloadKeys lists the map keys scanner libraries use for the decoded
// text, in the order they are tried.
var scanPayloadKeys = []string{"data", "text", "rawValue"}

// NormalizeScanResult extracts the scanned identifier from the shapes QR
// scanner libraries emit: a bare string, a map carrying the text under
// data/text/rawValue, or a non-empty array whose first element is either of
// those. Anything else is ErrUnrecognizedScan.
func NormalizeScanResult(result any) (string, error) {
	switch value := result.(type) {
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return "", fmt.Errorf("%w: empty string", ErrUnrecognizedScan)
		}
		return trimmed, nil
	case map[string]any:
		for _, key := range scanPayloadKeys {
			candidate, found := value[key]
			if !found {
				continue
			}
			text, ok := candidate.(string)
			if !ok {
				continue
			}
			trimmed := strings.TrimSpace(text)
			if trimmed != "" {
				return trimmed, nil
			}
		}
		return "", fmt.Errorf("%w: no recognized payload key", ErrUnrecognizedScan)
	case []any:
		if len(value) == 0 {
			return "", fmt.Errorf("%w: empty array", ErrUnrecognizedScan)
		}
		return NormalizeScanResult(value[0])
	default:
		return "", fmt.Errorf("%w: unsupported shape %T", ErrUnrecognizedScan, result)
	}
}

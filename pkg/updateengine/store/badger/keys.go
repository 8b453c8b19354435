package badger

// ============================================================================
// Database Key Namespace Design
// ============================================================================
//
// Update-engine state is small and flat (two dozen scalar keys): one
// prefix per Go type, then the caller-supplied logical key name verbatim.
//
// Data Type   Prefix   Key Format         Value Type
// ======================================================
// Integer     "i:"     i:<name>           decimal ASCII
// String      "s:"     s:<name>           raw bytes

const (
	prefixInt    = "i:"
	prefixString = "s:"
)

func keyInt(name string) []byte {
	return []byte(prefixInt + name)
}

func keyStr(name string) []byte {
	return []byte(prefixString + name)
}

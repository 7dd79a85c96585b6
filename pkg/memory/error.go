package memory

// UnknownKindError is returned when an external caller supplies a kind
// string outside the closed enumeration.
type UnknownKindError struct {
	Value string
}

func (e UnknownKindError) Error() string {
	if e.Value == "" {
		return "empty memory kind"
	}

	return "unknown memory kind: " + e.Value
}

package domain

// ThreadKeyPrefix namespaces thread mappings in the store's flat key space.
const ThreadKeyPrefix = "thread:"

// ThreadMapping links a caller-supplied identifier (e.g. a phone number) to a
// provider-issued conversation thread.
type ThreadMapping struct {
	Identifier string
	ThreadID   string
	CreatedAt  string
}

// ThreadKey returns the store key for an identifier. The identifier is used
// verbatim.
func ThreadKey(identifier string) string {
	return ThreadKeyPrefix + identifier
}

package apicollectionv1

// newCollectionDefaults returns the default field set a collection starts
// with when it is implicitly created by an insert or a setDefaults call
// against a name that does not exist yet: none.
func newCollectionDefaults() map[string]any {
	return map[string]any{}
}

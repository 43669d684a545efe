package buffer

// LabelSet is a small-universe bitset of packet labels (max 64, spec
// requires only ~32). The zero value is the empty set.
type LabelSet uint64

// MaxLabel is the highest label index this set can hold.
const MaxLabel = 63

// LabelDropped is the well-known label the ring's executor loop applies
// to every packet a processor marks StatusDrop or StatusStuffNull,
// regardless of which plugin made the decision. Downstream plugins (e.g.
// plugins/nullstuffer) can act on it without coordinating a private label
// number with every upstream processor.
const LabelDropped = 0

// Set returns the set with label n added.
func (l LabelSet) Set(n int) LabelSet {
	return l | (1 << uint(n))
}

// Clear returns the set with label n removed.
func (l LabelSet) Clear(n int) LabelSet {
	return l &^ (1 << uint(n))
}

// Test reports whether label n is a member of the set.
func (l LabelSet) Test(n int) bool {
	return l&(1<<uint(n)) != 0
}

// Union returns the union of two label sets.
func (l LabelSet) Union(other LabelSet) LabelSet {
	return l | other
}

// Empty reports whether the set has no labels.
func (l LabelSet) Empty() bool {
	return l == 0
}

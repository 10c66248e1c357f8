package reconcile

// ClaimSet records which activity rows have been bound to a signal. It lives
// for exactly one run; a fresh set is created by every Engine.Run call.
type ClaimSet struct {
	claimed map[int]struct{}
}

func NewClaimSet() *ClaimSet {
	return &ClaimSet{claimed: map[int]struct{}{}}
}

// Claim marks idx as taken. It returns false if idx was already claimed.
func (c *ClaimSet) Claim(idx int) bool {
	if _, ok := c.claimed[idx]; ok {
		return false
	}
	c.claimed[idx] = struct{}{}
	return true
}

func (c *ClaimSet) Claimed(idx int) bool {
	_, ok := c.claimed[idx]
	return ok
}

func (c *ClaimSet) Len() int {
	return len(c.claimed)
}

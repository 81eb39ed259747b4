package keyword

// Keyword is one ranked term with its occurrence count.
type Keyword struct {
	Term      string
	Frequency int
}

// Set is an ordered keyword list, highest priority first.
type Set []Keyword

// Terms returns the terms in rank order.
func (s Set) Terms() []string {
	out := make([]string, len(s))
	for i, k := range s {
		out[i] = k.Term
	}
	return out
}

// Top returns at most n leading keywords.
func (s Set) Top(n int) Set {
	if n < 0 {
		n = 0
	}
	if len(s) > n {
		return s[:n]
	}
	return s
}

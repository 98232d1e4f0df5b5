package altofs

import "fmt"

// AllocPage does a linear scan of the page store and returns the
// first VDA whose page is marked free (spec section 4.6). Vitality
// is derived entirely from each page's own label; there is no
// separate free-list to maintain. VDA 0 is never handed out: its RDA
// is 0, indistinguishable from the end-of-chain sentinel, so it can
// never be linked as a chain member.
func (s *PageStore) AllocPage() (VDA, error) {
	for i := 1; i < s.Len(); i++ {
		if s.Pages[i].Label.IsFree() {
			return VDA(i), nil
		}
	}
	return 0, fmt.Errorf("disk full: no free page available")
}

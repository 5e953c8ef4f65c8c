package transport

import "sync"

// defaultIdentities is the rotation pool used when a source does not
// configure its own client-identity strings.
var defaultIdentities = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// identityRotator hands out client-identity strings round-robin so repeated
// calls to one origin do not present a constant fingerprint.
type identityRotator struct {
	mu         sync.Mutex
	identities []string
	next       int
}

func newIdentityRotator(identities []string) *identityRotator {
	if len(identities) == 0 {
		identities = defaultIdentities
	}
	return &identityRotator{identities: identities}
}

// Next returns the next identity in rotation.
func (r *identityRotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.identities[r.next%len(r.identities)]
	r.next++
	return id
}

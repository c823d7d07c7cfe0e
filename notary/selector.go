package notary

import (
	"crypto/rand"
	"errors"
	"math/big"

	peer "github.com/libp2p/go-libp2p-core/peer"
)

// ErrNoNotaries is returned when no notary is configured.
var ErrNoNotaries = errors.New("no notaries configured")

// Selector picks the notary for transactions without inputs.
type Selector interface {
	Select() (peer.ID, error)
	Notaries() []peer.ID
}

// RandomSelector picks uniformly from a fixed list of notaries.
type RandomSelector struct {
	notaries []peer.ID
}

// NewRandomSelector returns a selector over the given notaries.
func NewRandomSelector(notaries []peer.ID) *RandomSelector {
	return &RandomSelector{notaries: notaries}
}

func (s *RandomSelector) Select() (peer.ID, error) {
	if len(s.notaries) == 0 {
		return "", ErrNoNotaries
	}
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(s.notaries))))
	if err != nil {
		return "", err
	}
	return s.notaries[i.Int64()], nil
}

func (s *RandomSelector) Notaries() []peer.ID {
	ret := make([]peer.ID, len(s.notaries))
	copy(ret, s.notaries)
	return ret
}

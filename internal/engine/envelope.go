package engine

import (
	"fmt"

	"github.com/beeper/cfu-relay/internal/cfu"
)

// ResponseKind tags an Envelope. The zero value is not a valid kind.
type ResponseKind uint8

const (
	KindOffer ResponseKind = iota + 1
	KindContent
)

func (k ResponseKind) String() string {
	switch k {
	case KindOffer:
		return "offer"
	case KindContent:
		return "content"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Envelope is a response waiting to be transmitted. Only the field named
// by Kind is meaningful.
type Envelope struct {
	Kind    ResponseKind
	Offer   cfu.OfferResponse
	Content cfu.ContentResponse
}

func OfferEnvelope(r cfu.OfferResponse) Envelope {
	return Envelope{Kind: KindOffer, Offer: r}
}

func ContentEnvelope(r cfu.ContentResponse) Envelope {
	return Envelope{Kind: KindContent, Content: r}
}

// Size is the framed length of the encoded response, or 0 for an unknown
// kind.
func (e Envelope) Size() int {
	switch e.Kind {
	case KindOffer:
		return cfu.OfferResponseSize
	case KindContent:
		return cfu.ContentResponseSize
	default:
		return 0
	}
}

// Bytes encodes the response carried by the envelope.
func (e Envelope) Bytes() ([]byte, error) {
	switch e.Kind {
	case KindOffer:
		return cfu.EncodeOfferResponse(e.Offer), nil
	case KindContent:
		return cfu.EncodeContentResponse(e.Content), nil
	default:
		return nil, fmt.Errorf("%w: envelope with %s", ErrInvariantViolation, e.Kind)
	}
}

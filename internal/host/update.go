package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/beeper/cfu-relay/internal/cfu"
)

var (
	ErrOfferNotAccepted = errors.New("host: offer not accepted")
	ErrContentRejected  = errors.New("host: content rejected")
	ErrEmptyImage       = errors.New("host: empty image")
)

// UpdateResult summarizes an image transfer.
type UpdateResult struct {
	Offer  cfu.OfferResponse
	Blocks int
	Bytes  int
}

// Update offers a standard offer and, once accepted, streams image as
// content blocks of at most chunk bytes starting at addr. The first block
// is flagged first, the last block last and verify. Sequence numbers
// start at 1.
func (c *Client) Update(ctx context.Context, offer cfu.OfferCommand, image []byte, addr uint32, chunk int) (UpdateResult, error) {
	var result UpdateResult

	if len(image) == 0 {
		return result, ErrEmptyImage
	}
	if chunk <= 0 || chunk > cfu.MaxContentData {
		chunk = cfu.MaxContentData
	}

	resp, err := c.SendOffer(ctx, offer)
	result.Offer = resp
	if err != nil {
		return result, err
	}
	if resp.Status != cfu.OfferAccept {
		return result, fmt.Errorf("%w: %s", ErrOfferNotAccepted, resp.Status)
	}

	var seq uint16
	for off := 0; off < len(image); off += chunk {
		end := min(off+chunk, len(image))
		seq++

		var flags cfu.ContentFlags
		if off == 0 {
			flags |= cfu.FlagFirstBlock
		}
		if end == len(image) {
			flags |= cfu.FlagLastBlock | cfu.FlagVerify
		}

		content := cfu.ContentCommand{
			SequenceNumber: seq,
			Address:        addr + uint32(off),
			Flags:          flags,
			Data:           image[off:end],
		}
		resp, err := c.SendContent(ctx, content)
		if err != nil {
			return result, fmt.Errorf("block %d: %w", seq, err)
		}
		if resp.Status != cfu.ContentSuccess {
			return result, fmt.Errorf("%w: block %d: %s", ErrContentRejected, seq, resp.Status)
		}

		result.Blocks++
		result.Bytes += end - off
		c.log.Debug().
			Uint16("seq", seq).
			Stringer("flags", flags).
			Int("bytes", end-off).
			Msg("Content block accepted")
	}

	return result, nil
}

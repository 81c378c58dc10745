package device

import (
	"sync"

	"github.com/beeper/cfu-relay/internal/analytics"
	"github.com/beeper/cfu-relay/internal/cfu"
)

// imageTracker is the content sink of a hosted device. The relay does not
// flash anything; it follows image transfers so they show up in logs and
// analytics.
type imageTracker struct {
	d *Device

	mu       sync.Mutex
	blocks   int
	bytes    int
	lastSeq  uint16
	started  bool
	verified bool
}

func newImageTracker(d *Device) *imageTracker {
	return &imageTracker{d: d}
}

func (t *imageTracker) Store(cmd cfu.ContentCommand) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cmd.Flags.Has(cfu.FlagFirstBlock) {
		t.blocks, t.bytes = 0, 0
		t.started = true
		t.verified = false
		analytics.Track(t.d.Code(), analytics.EventImageStarted, map[string]any{
			"address": cmd.Address,
		})
	}
	if !t.started {
		t.d.log.Warn().Uint16("seq", cmd.SequenceNumber).Msg("Content block outside of an image transfer")
	}

	t.blocks++
	t.bytes += len(cmd.Data)
	t.lastSeq = cmd.SequenceNumber
	if cmd.Flags.Has(cfu.FlagVerify) {
		t.verified = true
	}

	if cmd.Flags.Has(cfu.FlagLastBlock) {
		t.d.log.Info().
			Int("blocks", t.blocks).
			Int("bytes", t.bytes).
			Uint16("last_seq", t.lastSeq).
			Bool("verify_requested", t.verified).
			Msg("Image transfer complete")
		analytics.Track(t.d.Code(), analytics.EventImageComplete, map[string]any{
			"blocks": t.blocks,
			"bytes":  t.bytes,
		})
		t.started = false
	}
	return nil
}

// progress reports blocks and bytes received in the current or last image.
func (t *imageTracker) progress() (blocks, bytes int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blocks, t.bytes
}

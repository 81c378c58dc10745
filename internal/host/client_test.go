package host

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/beeper/cfu-relay/internal/api"
	"github.com/beeper/cfu-relay/internal/cfu"
	"github.com/beeper/cfu-relay/internal/config"
	"github.com/beeper/cfu-relay/internal/device"
	"github.com/beeper/cfu-relay/internal/engine"
)

func newTestRelay(t *testing.T) string {
	t.Helper()
	cfg := config.Default()
	cfg.Secret = bytes.Repeat([]byte{0x42}, 32)

	srv := httptest.NewServer(api.NewAPI(cfg).Handler())
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/device"
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func dialTest(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(testContext(t), url, WithLogger(zerolog.Nop()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func registerTest(t *testing.T, c *Client, req device.RegisterCommandData) device.RegisterCommandData {
	t.Helper()
	resp, err := c.Register(testContext(t), req)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return resp
}

func standardOffer(token byte) cfu.OfferCommand {
	return cfu.OfferCommand{
		Kind: cfu.OfferStandard,
		Info: cfu.ComponentInfo{
			ComponentID: 0x20,
			Token:       token,
		},
		Version:          cfu.Version{Major: 1, Minor: 1},
		ProtocolRevision: cfu.ProtocolRevision,
		ProductID:        0x1234,
	}
}

func TestRegisterAssignsCode(t *testing.T) {
	c := dialTest(t, newTestRelay(t))

	resp := registerTest(t, c, device.RegisterCommandData{})
	if len(resp.Code) != 19 {
		t.Fatalf("code %q has length %d, want 19", resp.Code, len(resp.Code))
	}
	if resp.Secret == "" {
		t.Fatalf("expected a secret")
	}
	if _, ok := device.GetDevice(resp.Code); !ok {
		t.Fatalf("device %s not registered", resp.Code)
	}
}

func TestRegisterRejectsBadSecret(t *testing.T) {
	url := newTestRelay(t)
	first := registerTest(t, dialTest(t, url), device.RegisterCommandData{})

	_, err := dialTest(t, url).Register(testContext(t), device.RegisterCommandData{
		Code:   first.Code,
		Secret: "bm90LXRoZS1zZWNyZXQ",
	})
	if err == nil {
		t.Fatalf("expected register error")
	}
}

func TestReRegisterKicksPreviousHost(t *testing.T) {
	url := newTestRelay(t)
	old := dialTest(t, url)
	creds := registerTest(t, old, device.RegisterCommandData{})

	registerTest(t, dialTest(t, url), creds)

	select {
	case <-old.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("previous host was not disconnected")
	}
	if err := old.Ping(testContext(t)); !errors.Is(err, ErrClosed) {
		t.Fatalf("ping on kicked host: got %v, want ErrClosed", err)
	}
}

func TestPing(t *testing.T) {
	c := dialTest(t, newTestRelay(t))
	if err := c.Ping(testContext(t)); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestGetVersions(t *testing.T) {
	tests := []struct {
		name      string
		req       device.RegisterCommandData
		component byte
		version   cfu.Version
	}{
		{
			name:      "defaults",
			component: 0x20,
			version:   cfu.Version{Major: 1},
		},
		{
			name: "overrides",
			req: device.RegisterCommandData{
				ComponentID: func() *uint8 { v := uint8(0x31); return &v }(),
				Version:     &device.VersionData{Major: 2, Minor: 7, Variant: 1},
			},
			component: 0x31,
			version:   cfu.Version{Major: 2, Minor: 7, Variant: 1},
		},
	}

	url := newTestRelay(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := dialTest(t, url)
			registerTest(t, c, tt.req)

			d, err := c.GetVersions(testContext(t), 0)
			if err != nil {
				t.Fatalf("get versions: %v", err)
			}
			if d.ComponentCount != 1 || len(d.Components) != 1 {
				t.Fatalf("got %d components, want 1", d.ComponentCount)
			}
			if d.ProtocolRevision != cfu.ProtocolRevision {
				t.Fatalf("protocol revision: got %d, want %d", d.ProtocolRevision, cfu.ProtocolRevision)
			}
			if got := d.Components[0]; got.ComponentID != tt.component || got.Version != tt.version {
				t.Fatalf("component: got 0x%02X %s, want 0x%02X %s", got.ComponentID, got.Version, tt.component, tt.version)
			}
		})
	}
}

func TestGetVersionsShortBuffer(t *testing.T) {
	c := dialTest(t, newTestRelay(t))
	registerTest(t, c, device.RegisterCommandData{})

	_, err := c.GetVersions(testContext(t), 4)
	if !errors.Is(err, engine.ErrInvalidLength) {
		t.Fatalf("got %v, want ErrInvalidLength", err)
	}
}

func TestSendOfferEchoesToken(t *testing.T) {
	c := dialTest(t, newTestRelay(t))
	registerTest(t, c, device.RegisterCommandData{})

	for _, token := range []byte{0x00, 0xA5, 0xFF} {
		resp, err := c.SendOffer(testContext(t), standardOffer(token))
		if err != nil {
			t.Fatalf("offer 0x%02X: %v", token, err)
		}
		if resp.Status != cfu.OfferAccept || resp.Token != token {
			t.Fatalf("offer 0x%02X: got %s token 0x%02X", token, resp.Status, resp.Token)
		}
	}
}

func TestSendContentEchoesSequence(t *testing.T) {
	c := dialTest(t, newTestRelay(t))
	registerTest(t, c, device.RegisterCommandData{})

	resp, err := c.SendContent(testContext(t), cfu.ContentCommand{
		SequenceNumber: 0x0102,
		Address:        0x1000,
		Flags:          cfu.FlagFirstBlock,
		Data:           []byte{1, 2, 3, 4},
	})
	if err != nil {
		t.Fatalf("send content: %v", err)
	}
	if resp.Status != cfu.ContentSuccess || resp.SequenceNumber != 0x0102 {
		t.Fatalf("got %s seq %d", resp.Status, resp.SequenceNumber)
	}
}

func TestOutputReportErrors(t *testing.T) {
	c := dialTest(t, newTestRelay(t))
	registerTest(t, c, device.RegisterCommandData{})

	tests := []struct {
		name     string
		reportID byte
		data     []byte
		want     error
	}{
		{"below content header", cfu.ReportOfferOutput, make([]byte, 3), engine.ErrInvalidLength},
		{"short offer", cfu.ReportOfferOutput, make([]byte, 12), engine.ErrInvalidLength},
		{"unknown report", 0x99, make([]byte, 16), engine.ErrUnknownReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.sendOutput(testContext(t), tt.reportID, tt.data)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOutputReportBeforeRegister(t *testing.T) {
	c := dialTest(t, newTestRelay(t))

	if _, err := c.SendOffer(testContext(t), standardOffer(1)); err == nil {
		t.Fatalf("expected error before register")
	}
}

func TestUpdate(t *testing.T) {
	c := dialTest(t, newTestRelay(t))
	creds := registerTest(t, c, device.RegisterCommandData{})

	image := make([]byte, 120)
	for i := range image {
		image[i] = byte(i)
	}

	result, err := c.Update(testContext(t), standardOffer(7), image, 0x8000, cfu.MaxContentData)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.Offer.Status != cfu.OfferAccept {
		t.Fatalf("offer status: got %s", result.Offer.Status)
	}
	if result.Blocks != 3 || result.Bytes != len(image) {
		t.Fatalf("got %d blocks %d bytes, want 3 blocks %d bytes", result.Blocks, result.Bytes, len(image))
	}

	dev, ok := device.GetDevice(creds.Code)
	if !ok {
		t.Fatalf("device %s not registered", creds.Code)
	}
	status, ok := dev.Status()
	if !ok {
		t.Fatalf("device has no status")
	}
	if status.ImageBlocks != 3 || status.ImageBytes != len(image) {
		t.Fatalf("relay saw %d blocks %d bytes", status.ImageBlocks, status.ImageBytes)
	}
}

func TestUpdateEmptyImage(t *testing.T) {
	c := dialTest(t, newTestRelay(t))
	registerTest(t, c, device.RegisterCommandData{})

	if _, err := c.Update(testContext(t), standardOffer(1), nil, 0, 0); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("got %v, want ErrEmptyImage", err)
	}
}

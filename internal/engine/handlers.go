package engine

import (
	"fmt"

	"github.com/beeper/cfu-relay/internal/cfu"
	"github.com/beeper/cfu-relay/internal/metrics"
)

// HandleOffer answers an offer. Every offer is accepted and the engine
// state is left as it was.
// TODO: version compare and duplicate-offer rejection belong here once a
// device needs them; the host currently expects every offer accepted.
func (e *Engine) HandleOffer(cmd cfu.OfferCommand) cfu.OfferResponse {
	metrics.Offers.WithLabelValues(cmd.Kind.String()).Inc()

	switch cmd.Kind {
	case cfu.OfferInfoOnly:
		e.log.Info().
			Uint8("code", cmd.InformationCode).
			Uint8("token", cmd.Token()).
			Msg("Received offer information")
	case cfu.OfferExtended:
		e.log.Info().
			Uint8("command", cmd.CommandCode).
			Uint8("token", cmd.Token()).
			Msg("Received offer command")
	default:
		e.log.Info().
			Uint8("component_id", cmd.Info.ComponentID).
			Bool("force_ignore_version", cmd.Info.ForceIgnoreVersion).
			Bool("force_immediate_reset", cmd.Info.ForceImmediateReset).
			Uint8("segment", cmd.Info.SegmentNumber).
			Uint8("token", cmd.Token()).
			Str("version", cmd.Version.String()).
			Msg("Received offer")
	}

	return cfu.OfferResponse{
		Status: cfu.OfferAccept,
		Token:  cmd.Token(),
	}
}

// HandleContent answers a content block with success and passes it to the
// content sink, if any.
func (e *Engine) HandleContent(cmd cfu.ContentCommand) cfu.ContentResponse {
	e.log.Debug().
		Uint16("seq", cmd.SequenceNumber).
		Str("addr", fmt.Sprintf("0x%08X", cmd.Address)).
		Uint16("len", cmd.Length).
		Stringer("flags", cmd.Flags).
		Msg("Content received")

	if e.sink != nil {
		if err := e.sink.Store(cmd); err != nil {
			metrics.ContentSinkErrors.Inc()
			e.log.Err(err).Uint16("seq", cmd.SequenceNumber).Msg("Content sink failed to store block")
		}
	}

	return cfu.ContentResponse{
		Status:         cfu.ContentSuccess,
		SequenceNumber: cmd.SequenceNumber,
	}
}

// HandleFeatureReport answers a versions feature query for a caller buffer
// of bufLen bytes. It does not queue anything.
func (e *Engine) HandleFeatureReport(reportID byte, bufLen int) (cfu.VersionDescriptor, error) {
	err := e.checkFeatureReport(reportID, bufLen)
	metrics.Reports.WithLabelValues("versions", Reason(err)).Inc()
	if err != nil {
		return cfu.VersionDescriptor{}, err
	}

	return cfu.VersionDescriptor{
		ComponentCount:   1,
		ProtocolRevision: cfu.ProtocolRevision,
		Components: []cfu.ComponentVersion{
			{ComponentID: e.state.ComponentID, Version: e.state.Version},
		},
	}, nil
}

// VersionReport is HandleFeatureReport with the answer encoded.
func (e *Engine) VersionReport(reportID byte, bufLen int) ([]byte, error) {
	d, err := e.HandleFeatureReport(reportID, bufLen)
	if err != nil {
		return nil, err
	}
	return cfu.EncodeVersionDescriptor(d), nil
}

func (e *Engine) checkFeatureReport(reportID byte, bufLen int) error {
	if bufLen < cfu.VersionDescriptorSize(1) {
		return fmt.Errorf("%w: versions report needs %d bytes, got %d", ErrInvalidLength, cfu.VersionDescriptorSize(1), bufLen)
	}
	if reportID != e.ids.VersionsFeature {
		return fmt.Errorf("%w: feature 0x%02X", ErrUnknownReport, reportID)
	}
	return nil
}

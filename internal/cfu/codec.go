package cfu

import (
	"encoding/binary"
)

// DecodeOffer decodes an Offer-Output report. The componentId byte is read
// first and selects the layout the remaining bytes are read with.
func DecodeOffer(buf []byte) (OfferCommand, error) {
	if len(buf) < OfferCommandSize {
		return OfferCommand{}, tooShort("offer command", len(buf), OfferCommandSize)
	}

	componentID := buf[offerComponentOffset]
	token := buf[offerTokenOffset]

	switch componentID {
	case ComponentIDInfoOnly:
		return OfferCommand{
			Kind:            OfferInfoOnly,
			Info:            ComponentInfo{ComponentID: componentID, Token: token},
			InformationCode: buf[offerCodeOffset],
		}, nil
	case ComponentIDExtended:
		return OfferCommand{
			Kind:        OfferExtended,
			Info:        ComponentInfo{ComponentID: componentID, Token: token},
			CommandCode: buf[offerCodeOffset],
		}, nil
	}

	flags := buf[offerFlagsOffset]
	return OfferCommand{
		Kind: OfferStandard,
		Info: ComponentInfo{
			ComponentID:         componentID,
			Token:               token,
			SegmentNumber:       buf[offerCodeOffset],
			ForceIgnoreVersion:  flags&offerFlagForceIgnoreVersion != 0,
			ForceImmediateReset: flags&offerFlagForceImmediateReset != 0,
		},
		Version:          VersionFromUint32(binary.LittleEndian.Uint32(buf[offerVersionOffset:])),
		HwVariantMask:    binary.LittleEndian.Uint32(buf[offerHwVariantOffset:]),
		ProtocolRevision: buf[offerRevisionOffset] & 0x0F,
		ProductID:        binary.LittleEndian.Uint16(buf[offerProductOffset:]),
	}, nil
}

// EncodeOffer builds an Offer-Output report. Info.ComponentID is replaced by
// the sentinel for the info-only and extended kinds.
func EncodeOffer(c OfferCommand) []byte {
	buf := make([]byte, OfferCommandSize)
	buf[offerTokenOffset] = c.Info.Token

	switch c.Kind {
	case OfferInfoOnly:
		buf[offerCodeOffset] = c.InformationCode
		buf[offerComponentOffset] = ComponentIDInfoOnly
		return buf
	case OfferExtended:
		buf[offerCodeOffset] = c.CommandCode
		buf[offerComponentOffset] = ComponentIDExtended
		return buf
	}

	var flags byte
	if c.Info.ForceIgnoreVersion {
		flags |= offerFlagForceIgnoreVersion
	}
	if c.Info.ForceImmediateReset {
		flags |= offerFlagForceImmediateReset
	}
	buf[offerCodeOffset] = c.Info.SegmentNumber
	buf[offerFlagsOffset] = flags
	buf[offerComponentOffset] = c.Info.ComponentID
	binary.LittleEndian.PutUint32(buf[offerVersionOffset:], c.Version.Uint32())
	binary.LittleEndian.PutUint32(buf[offerHwVariantOffset:], c.HwVariantMask)
	buf[offerRevisionOffset] = c.ProtocolRevision & 0x0F
	binary.LittleEndian.PutUint16(buf[offerProductOffset:], c.ProductID)
	return buf
}

// DecodeContent decodes a Payload-Output report. Data holds at most Length
// bytes and aliases buf; a report carrying fewer bytes than Length yields
// the bytes it has.
func DecodeContent(buf []byte) (ContentCommand, error) {
	if len(buf) < ContentHeaderSize {
		return ContentCommand{}, tooShort("content command", len(buf), ContentHeaderSize)
	}

	cmd := ContentCommand{
		Flags:          ContentFlags(buf[0]),
		SequenceNumber: binary.LittleEndian.Uint16(buf[2:4]),
		Address:        binary.LittleEndian.Uint32(buf[4:8]),
		Length:         binary.LittleEndian.Uint16(buf[8:10]),
	}

	data := buf[ContentHeaderSize:]
	if len(data) > int(cmd.Length) {
		data = data[:cmd.Length]
	}
	cmd.Data = data
	return cmd, nil
}

// EncodeContent builds a Payload-Output report. Length is taken from Data
// when Data is set.
func EncodeContent(c ContentCommand) []byte {
	length := c.Length
	if c.Data != nil {
		length = uint16(len(c.Data))
	}

	buf := make([]byte, ContentHeaderSize+len(c.Data))
	buf[0] = byte(c.Flags)
	binary.LittleEndian.PutUint16(buf[2:4], c.SequenceNumber)
	binary.LittleEndian.PutUint32(buf[4:8], c.Address)
	binary.LittleEndian.PutUint16(buf[8:10], length)
	copy(buf[ContentHeaderSize:], c.Data)
	return buf
}

// EncodeOfferResponse builds an Offer-Input report.
//
//	[STATUS][TOKEN]
func EncodeOfferResponse(r OfferResponse) []byte {
	return []byte{byte(r.Status), r.Token}
}

// DecodeOfferResponse decodes an Offer-Input report.
func DecodeOfferResponse(buf []byte) (OfferResponse, error) {
	if len(buf) < OfferResponseSize {
		return OfferResponse{}, tooShort("offer response", len(buf), OfferResponseSize)
	}
	return OfferResponse{Status: OfferStatus(buf[0]), Token: buf[1]}, nil
}

// EncodeContentResponse builds a Payload-Input report.
//
//	[SEQ_L][SEQ_H][STATUS][RSVD]
func EncodeContentResponse(r ContentResponse) []byte {
	buf := make([]byte, ContentResponseSize)
	binary.LittleEndian.PutUint16(buf[0:2], r.SequenceNumber)
	buf[2] = byte(r.Status)
	return buf
}

// DecodeContentResponse decodes a Payload-Input report.
func DecodeContentResponse(buf []byte) (ContentResponse, error) {
	if len(buf) < ContentResponseSize {
		return ContentResponse{}, tooShort("content response", len(buf), ContentResponseSize)
	}
	return ContentResponse{
		SequenceNumber: binary.LittleEndian.Uint16(buf[0:2]),
		Status:         ContentStatus(buf[2]),
	}, nil
}

// EncodeVersionDescriptor builds a Versions-Feature answer. ComponentCount
// is written as given; entries are written for every element of Components.
func EncodeVersionDescriptor(d VersionDescriptor) []byte {
	buf := make([]byte, VersionDescriptorSize(len(d.Components)))
	buf[0] = d.ComponentCount
	buf[3] = d.ProtocolRevision & 0x0F

	for i, c := range d.Components {
		entry := buf[versionHeaderSize+i*versionEntrySize:]
		binary.LittleEndian.PutUint32(entry[0:4], c.Version.Uint32())
		entry[5] = c.ComponentID
	}
	return buf
}

// DecodeVersionDescriptor decodes a Versions-Feature answer.
func DecodeVersionDescriptor(buf []byte) (VersionDescriptor, error) {
	if len(buf) < versionHeaderSize {
		return VersionDescriptor{}, tooShort("version descriptor", len(buf), versionHeaderSize)
	}

	d := VersionDescriptor{
		ComponentCount:   buf[0],
		ProtocolRevision: buf[3] & 0x0F,
	}
	want := VersionDescriptorSize(int(d.ComponentCount))
	if len(buf) < want {
		return VersionDescriptor{}, tooShort("version descriptor", len(buf), want)
	}

	d.Components = make([]ComponentVersion, 0, d.ComponentCount)
	for i := 0; i < int(d.ComponentCount); i++ {
		entry := buf[versionHeaderSize+i*versionEntrySize:]
		d.Components = append(d.Components, ComponentVersion{
			ComponentID: entry[5],
			Version:     VersionFromUint32(binary.LittleEndian.Uint32(entry[0:4])),
		})
	}
	return d, nil
}

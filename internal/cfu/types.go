package cfu

import (
	"fmt"
	"strings"
)

// Version is a packed component firmware version.
type Version struct {
	Major   uint8
	Minor   uint16
	Variant uint8
}

// VersionFromUint32 unpacks a wire version: variant in bits 0-7, minor in
// bits 8-23, major in bits 24-31.
func VersionFromUint32(v uint32) Version {
	return Version{
		Major:   uint8(v >> 24),
		Minor:   uint16(v >> 8),
		Variant: uint8(v),
	}
}

// Uint32 packs the version into its wire representation.
func (v Version) Uint32() uint32 {
	return uint32(v.Major)<<24 | uint32(v.Minor)<<8 | uint32(v.Variant)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Variant)
}

// ComponentInfo is the header shared by every offer layout.
type ComponentInfo struct {
	ComponentID         byte
	Token               byte
	SegmentNumber       byte
	ForceIgnoreVersion  bool
	ForceImmediateReset bool
}

// OfferKind discriminates the offer layouts.
type OfferKind int

const (
	OfferStandard OfferKind = iota
	OfferInfoOnly
	OfferExtended
)

func (k OfferKind) String() string {
	switch k {
	case OfferStandard:
		return "standard"
	case OfferInfoOnly:
		return "info"
	case OfferExtended:
		return "extended"
	default:
		return fmt.Sprintf("offer_kind(%d)", int(k))
	}
}

// OfferCommand is a decoded Offer-Output report. Which fields are meaningful
// depends on Kind:
//
//   - OfferStandard: Info, Version, HwVariantMask, ProtocolRevision, ProductID
//   - OfferInfoOnly: Info.ComponentID, Info.Token, InformationCode
//   - OfferExtended: Info.ComponentID, Info.Token, CommandCode
type OfferCommand struct {
	Kind OfferKind
	Info ComponentInfo

	Version          Version
	HwVariantMask    uint32
	ProtocolRevision byte
	ProductID        uint16

	InformationCode byte
	CommandCode     byte
}

// Token returns the correlation token, present in every layout.
func (c OfferCommand) Token() byte {
	return c.Info.Token
}

// OfferStatus is the status of an Offer-Input report.
type OfferStatus byte

const (
	OfferSkip         OfferStatus = 0x00
	OfferAccept       OfferStatus = 0x01
	OfferReject       OfferStatus = 0x02
	OfferBusy         OfferStatus = 0x03
	OfferCommandReady OfferStatus = 0x04
	OfferSwapPending  OfferStatus = 0x05
	OfferNotSupported OfferStatus = 0xFF
)

func (s OfferStatus) String() string {
	switch s {
	case OfferSkip:
		return "skip"
	case OfferAccept:
		return "accept"
	case OfferReject:
		return "reject"
	case OfferBusy:
		return "busy"
	case OfferCommandReady:
		return "command_ready"
	case OfferSwapPending:
		return "swap_pending"
	case OfferNotSupported:
		return "not_supported"
	default:
		return fmt.Sprintf("offer_status(0x%02X)", byte(s))
	}
}

// OfferResponse answers an offer, echoing its token.
type OfferResponse struct {
	Status OfferStatus
	Token  byte
}

// ContentFlags is the flag byte of a content command.
type ContentFlags byte

const (
	FlagVerify     ContentFlags = 0x08
	FlagLastBlock  ContentFlags = 0x40
	FlagFirstBlock ContentFlags = 0x80
)

// Has reports whether every bit of f is set.
func (c ContentFlags) Has(f ContentFlags) bool {
	return c&f == f
}

func (c ContentFlags) String() string {
	var parts []string
	if c.Has(FlagFirstBlock) {
		parts = append(parts, "first")
	}
	if c.Has(FlagLastBlock) {
		parts = append(parts, "last")
	}
	if c.Has(FlagVerify) {
		parts = append(parts, "verify")
	}
	if rest := c &^ (FlagFirstBlock | FlagLastBlock | FlagVerify); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%02X", byte(rest)))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ContentCommand is a decoded Payload-Output report.
type ContentCommand struct {
	SequenceNumber uint16
	Address        uint32
	Length         uint16
	Flags          ContentFlags

	// Data aliases the report buffer.
	Data []byte
}

// ContentStatus is the status of a Payload-Input report.
type ContentStatus byte

const (
	ContentSuccess             ContentStatus = 0x00
	ContentErrorPrepare        ContentStatus = 0x01
	ContentErrorWrite          ContentStatus = 0x02
	ContentErrorComplete       ContentStatus = 0x03
	ContentErrorVerify         ContentStatus = 0x04
	ContentErrorCRC            ContentStatus = 0x05
	ContentErrorSignature      ContentStatus = 0x06
	ContentErrorVersion        ContentStatus = 0x07
	ContentErrorSwapPending    ContentStatus = 0x08
	ContentErrorInvalidAddress ContentStatus = 0x09
	ContentErrorNoOffer        ContentStatus = 0x0A
	ContentErrorInvalid        ContentStatus = 0x0B
)

func (s ContentStatus) String() string {
	switch s {
	case ContentSuccess:
		return "success"
	case ContentErrorPrepare:
		return "error_prepare"
	case ContentErrorWrite:
		return "error_write"
	case ContentErrorComplete:
		return "error_complete"
	case ContentErrorVerify:
		return "error_verify"
	case ContentErrorCRC:
		return "error_crc"
	case ContentErrorSignature:
		return "error_signature"
	case ContentErrorVersion:
		return "error_version"
	case ContentErrorSwapPending:
		return "swap_pending"
	case ContentErrorInvalidAddress:
		return "error_invalid_address"
	case ContentErrorNoOffer:
		return "error_no_offer"
	case ContentErrorInvalid:
		return "error_invalid"
	default:
		return fmt.Sprintf("content_status(0x%02X)", byte(s))
	}
}

// ContentResponse answers a content command, echoing its sequence number.
type ContentResponse struct {
	Status         ContentStatus
	SequenceNumber uint16
}

// ComponentVersion is one entry of the versions feature report.
type ComponentVersion struct {
	ComponentID byte
	Version     Version
}

// VersionDescriptor is the versions feature report.
type VersionDescriptor struct {
	ComponentCount   byte
	ProtocolRevision byte
	Components       []ComponentVersion
}

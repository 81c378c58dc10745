package cfu

// Default report ids, as declared by the CFU sample HID report descriptor.
// Output and input reports may share an id; direction tells them apart.
const (
	ReportVersionsFeature byte = 0x20
	ReportPayloadOutput   byte = 0x20
	ReportPayloadInput    byte = 0x22
	ReportOfferOutput     byte = 0x25
	ReportOfferInput      byte = 0x25
)

// Offer componentId sentinels.
const (
	ComponentIDInfoOnly byte = 0xFF
	ComponentIDExtended byte = 0xFE
)

// ProtocolRevision is the CFU protocol revision reported in the versions
// feature report.
const ProtocolRevision byte = 0x02

// Report sizes in bytes.
const (
	// OfferCommandSize is the size of every Offer-Output layout.
	OfferCommandSize = 16

	// OfferResponseSize is the size of an Offer-Input report.
	OfferResponseSize = 2

	// ContentHeaderSize is the fixed part of a Payload-Output report.
	ContentHeaderSize = 10

	// ContentResponseSize is the size of a Payload-Input report.
	ContentResponseSize = 4

	// MaxContentData is the largest data block carried by one content
	// command in the CFU sample host.
	MaxContentData = 52

	versionHeaderSize = 4
	versionEntrySize  = 8
)

// Offer byte offsets.
const (
	offerCodeOffset      = 0
	offerFlagsOffset     = 1
	offerComponentOffset = 2
	offerTokenOffset     = 3
	offerVersionOffset   = 4
	offerHwVariantOffset = 8
	offerRevisionOffset  = 12
	offerProductOffset   = 14
)

const (
	offerFlagForceImmediateReset = 1 << 6
	offerFlagForceIgnoreVersion  = 1 << 7
)

// VersionDescriptorSize returns the encoded size of a versions feature
// report carrying n components.
func VersionDescriptorSize(n int) int {
	return versionHeaderSize + n*versionEntrySize
}

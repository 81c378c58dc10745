// Package cfu implements the Component Firmware Update (CFU) report layouts.
//
// The package is stateless: it decodes the output reports a host sends to a
// device (offers and content blocks) and encodes the input and feature
// reports a device answers with. All multi-byte fields are little-endian.
//
// # Offer-Output
//
// Three layouts share the report. They are told apart by the componentId
// byte at offset 2, which every layout carries at the same place:
//
//	standard:  [SEGMENT][FLAGS][COMPONENT_ID][TOKEN][VERSION(4)][HW_VARIANT(4)][REV][RSVD][PRODUCT_ID(2)]
//	info-only: [INFO_CODE][RSVD][0xFF][TOKEN][RSVD(12)]
//	extended:  [CMD_CODE][RSVD][0xFE][TOKEN][RSVD(12)]
//
// DecodeOffer reads the discriminant first and then builds the matching
// OfferCommand variant.
//
// # Payload-Output
//
//	[FLAGS][RSVD][SEQ(2)][ADDRESS(4)][LENGTH(2)][DATA...]
//
// # Responses
//
//	Offer-Input:   [STATUS][TOKEN]
//	Payload-Input: [SEQ(2)][STATUS][RSVD]
//
// # Versions-Feature
//
//	[COUNT][RSVD(2)][REV] then per component [VERSION(4)][PROPS][COMPONENT_ID][VENDOR(2)]
package cfu

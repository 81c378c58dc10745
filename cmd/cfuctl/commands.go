package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/beeper/cfu-relay/internal/cfu"
	"github.com/beeper/cfu-relay/internal/device"
)

// parseVersion parses major.minor.variant.
func parseVersion(s string) (cfu.Version, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return cfu.Version{}, fmt.Errorf("version %q: want major.minor.variant", s)
	}
	major, err := strconv.ParseUint(parts[0], 0, 8)
	if err != nil {
		return cfu.Version{}, fmt.Errorf("version %q: major: %w", s, err)
	}
	minor, err := strconv.ParseUint(parts[1], 0, 16)
	if err != nil {
		return cfu.Version{}, fmt.Errorf("version %q: minor: %w", s, err)
	}
	variant, err := strconv.ParseUint(parts[2], 0, 8)
	if err != nil {
		return cfu.Version{}, fmt.Errorf("version %q: variant: %w", s, err)
	}
	return cfu.Version{Major: uint8(major), Minor: uint16(minor), Variant: uint8(variant)}, nil
}

// parseContentFlags parses a list like "first,last,verify".
func parseContentFlags(names []string) (cfu.ContentFlags, error) {
	var flags cfu.ContentFlags
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "first":
			flags |= cfu.FlagFirstBlock
		case "last":
			flags |= cfu.FlagLastBlock
		case "verify":
			flags |= cfu.FlagVerify
		case "":
		default:
			return 0, fmt.Errorf("unknown content flag %q", name)
		}
	}
	return flags, nil
}

func registerCmd(s *session) *cobra.Command {
	var componentID uint8
	var version string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a device and keep it connected",
		Long: `Register a device and host it until interrupted. While connected the
device can also be driven through the relay's HTTP API with the printed code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req device.RegisterCommandData
			if cmd.Flags().Changed("component") {
				req.ComponentID = &componentID
			}
			if version != "" {
				v, err := parseVersion(version)
				if err != nil {
					return err
				}
				req.Version = &device.VersionData{Major: v.Major, Minor: v.Minor, Variant: v.Variant}
			}

			c, resp, err := s.connect(cmd.Context(), req)
			if err != nil {
				return err
			}
			defer c.Close()

			fmt.Printf("code:   %s\n", resp.Code)
			fmt.Printf("secret: %s\n", resp.Secret)

			<-cmd.Context().Done()
			return nil
		},
	}

	cmd.Flags().Uint8Var(&componentID, "component", 0, "Component id to host (default from relay config)")
	cmd.Flags().StringVar(&version, "version", "", "Firmware version to report, major.minor.variant")

	return cmd
}

func versionsCmd(s *session) *cobra.Command {
	var length int

	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Read the versions feature report",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := s.connect(cmd.Context(), device.RegisterCommandData{})
			if err != nil {
				return err
			}
			defer c.Close()

			d, err := c.GetVersions(cmd.Context(), length)
			if err != nil {
				return err
			}

			fmt.Printf("protocol revision: %d\n", d.ProtocolRevision)
			for _, comp := range d.Components {
				fmt.Printf("component 0x%02X: %s (0x%08X)\n", comp.ComponentID, comp.Version, comp.Version.Uint32())
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&length, "length", 0, "Feature buffer length (default fits one component)")

	return cmd
}

type offerFlags struct {
	componentID  uint8
	token        uint8
	version      string
	hwVariant    uint32
	productID    uint16
	ignoreVer    bool
	forceReset   bool
	infoCode     int
	extendedCode int
}

func (f *offerFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint8Var(&f.componentID, "component", 0x20, "Offered component id")
	cmd.Flags().Uint8Var(&f.token, "token", 0x01, "Offer token")
	cmd.Flags().StringVar(&f.version, "version", "1.0.0", "Offered firmware version, major.minor.variant")
	cmd.Flags().Uint32Var(&f.hwVariant, "hw-variant", 0, "Hardware variant mask")
	cmd.Flags().Uint16Var(&f.productID, "product", 0, "Product id")
	cmd.Flags().BoolVar(&f.ignoreVer, "force-ignore-version", false, "Set the force ignore version flag")
	cmd.Flags().BoolVar(&f.forceReset, "force-reset", false, "Set the force immediate reset flag")
}

func (f *offerFlags) offer() (cfu.OfferCommand, error) {
	info := cfu.ComponentInfo{
		ComponentID:         f.componentID,
		Token:               f.token,
		ForceIgnoreVersion:  f.ignoreVer,
		ForceImmediateReset: f.forceReset,
	}

	switch {
	case f.infoCode >= 0:
		info.ComponentID = cfu.ComponentIDInfoOnly
		return cfu.OfferCommand{Kind: cfu.OfferInfoOnly, Info: info, InformationCode: byte(f.infoCode)}, nil
	case f.extendedCode >= 0:
		info.ComponentID = cfu.ComponentIDExtended
		return cfu.OfferCommand{Kind: cfu.OfferExtended, Info: info, CommandCode: byte(f.extendedCode)}, nil
	}

	v, err := parseVersion(f.version)
	if err != nil {
		return cfu.OfferCommand{}, err
	}
	return cfu.OfferCommand{
		Kind:             cfu.OfferStandard,
		Info:             info,
		Version:          v,
		HwVariantMask:    f.hwVariant,
		ProtocolRevision: cfu.ProtocolRevision,
		ProductID:        f.productID,
	}, nil
}

func offerCmd(s *session) *cobra.Command {
	f := offerFlags{infoCode: -1, extendedCode: -1}

	cmd := &cobra.Command{
		Use:   "offer",
		Short: "Send one offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			offer, err := f.offer()
			if err != nil {
				return err
			}

			c, _, err := s.connect(cmd.Context(), device.RegisterCommandData{})
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.SendOffer(cmd.Context(), offer)
			if err != nil {
				return err
			}
			fmt.Printf("%s offer: %s (token 0x%02X)\n", offer.Kind, resp.Status, resp.Token)
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().IntVar(&f.infoCode, "info", -1, "Send an info-only offer with this information code")
	cmd.Flags().IntVar(&f.extendedCode, "extended", -1, "Send an extended offer with this command code")
	cmd.MarkFlagsMutuallyExclusive("info", "extended")

	return cmd
}

func contentCmd(s *session) *cobra.Command {
	var seq uint16
	var addr uint32
	var flagNames []string
	var data string

	cmd := &cobra.Command{
		Use:   "content",
		Short: "Send one content block",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags, err := parseContentFlags(flagNames)
			if err != nil {
				return err
			}
			payload, err := hex.DecodeString(data)
			if err != nil {
				return fmt.Errorf("data: %w", err)
			}
			if len(payload) > cfu.MaxContentData {
				return fmt.Errorf("data: %d bytes, at most %d fit one block", len(payload), cfu.MaxContentData)
			}

			c, _, err := s.connect(cmd.Context(), device.RegisterCommandData{})
			if err != nil {
				return err
			}
			defer c.Close()

			resp, err := c.SendContent(cmd.Context(), cfu.ContentCommand{
				SequenceNumber: seq,
				Address:        addr,
				Flags:          flags,
				Data:           payload,
			})
			if err != nil {
				return err
			}
			fmt.Printf("content %d: %s\n", resp.SequenceNumber, resp.Status)
			return nil
		},
	}

	cmd.Flags().Uint16Var(&seq, "seq", 1, "Sequence number")
	cmd.Flags().Uint32Var(&addr, "addr", 0, "Block address")
	cmd.Flags().StringSliceVar(&flagNames, "flags", nil, "Block flags: first, last, verify")
	cmd.Flags().StringVar(&data, "data", "", "Block data, hex encoded")

	return cmd
}

func updateCmd(s *session) *cobra.Command {
	f := offerFlags{infoCode: -1, extendedCode: -1}
	var addr uint32
	var chunk int

	cmd := &cobra.Command{
		Use:   "update <image>",
		Short: "Offer a firmware image and stream it as content blocks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			offer, err := f.offer()
			if err != nil {
				return err
			}

			c, _, err := s.connect(cmd.Context(), device.RegisterCommandData{})
			if err != nil {
				return err
			}
			defer c.Close()

			log.Info().
				Str("image", args[0]).
				Int("bytes", len(image)).
				Stringer("version", offer.Version).
				Msg("Starting update")

			result, err := c.Update(cmd.Context(), offer, image, addr, chunk)
			if err != nil {
				return err
			}
			fmt.Printf("sent %d blocks, %d bytes\n", result.Blocks, result.Bytes)
			return nil
		},
	}

	f.register(cmd)
	cmd.Flags().Uint32Var(&addr, "addr", 0, "Base address of the image")
	cmd.Flags().IntVar(&chunk, "chunk", cfu.MaxContentData, "Content block size")

	return cmd
}

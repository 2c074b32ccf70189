package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ddmw-cli/internal/msg"
	"ddmw-cli/internal/proto"
)

type sendConfig struct {
	channel     uint8
	cmdCode     uint32
	meta        []string
	metaFile    string
	payload     string
	payloadFile string
}

func newSendCmd(cfg *rootConfig) *cobra.Command {
	sc := &sendConfig{}
	c := &cobra.Command{
		Use:   "send",
		Short: "Send a message on a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mi, err := buildMsgInfo(cmd, sc)
			if err != nil {
				return err
			}
			ai, err := cfg.authInfo()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.opTimeout())
			defer cancel()

			xferID, err := msg.ConnSend(ctx, cfg.endpoint(), ai, sc.channel, mi)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), xferID)
			return nil
		},
	}

	f := c.Flags()
	f.Uint8Var(&sc.channel, "channel", 0, "destination channel (required)")
	f.Uint32Var(&sc.cmdCode, "cmd", 0, "application command code")
	f.StringArrayVarP(&sc.meta, "meta", "m", nil, "metadata key=value (repeatable)")
	f.StringVar(&sc.metaFile, "meta-file", "", "read metadata from file")
	f.StringVar(&sc.payload, "payload", "", "inline payload string")
	f.StringVar(&sc.payloadFile, "payload-file", "", "read payload from file, - for stdin")
	_ = c.MarkFlagRequired("channel")
	c.MarkFlagsMutuallyExclusive("meta", "meta-file")
	c.MarkFlagsMutuallyExclusive("payload", "payload-file")

	return c
}

// buildMsgInfo assembles the message descriptor from the send flags.
func buildMsgInfo(cmd *cobra.Command, sc *sendConfig) (*msg.MsgInfo, error) {
	mi := &msg.MsgInfo{Cmd: sc.cmdCode}

	switch {
	case len(sc.meta) > 0:
		p, err := parseMetaPairs(sc.meta)
		if err != nil {
			return nil, err
		}
		mi.Meta = msg.ParamsContent{Params: p}
	case sc.metaFile != "":
		mi.Meta = msg.FileContent{Path: sc.metaFile}
	}

	switch {
	case cmd.Flags().Changed("payload"):
		mi.Payload = msg.BytesContent{Data: []byte(sc.payload)}
	case sc.payloadFile == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("reading payload from stdin: %w", err)
		}
		mi.Payload = msg.BytesContent{Data: data}
	case sc.payloadFile != "":
		mi.Payload = msg.FileContent{Path: sc.payloadFile}
	default:
		if !isTTY(os.Stdin) {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return nil, fmt.Errorf("reading payload from stdin: %w", err)
			}
			if len(data) > 0 {
				mi.Payload = msg.BytesContent{Data: data}
			}
		}
	}

	return mi, nil
}

// parseMetaPairs turns repeated key=value flags into a parameter block.
func parseMetaPairs(pairs []string) (*proto.Params, error) {
	p := proto.NewParams()
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid meta %q: want key=value", pair)
		}
		if err := p.Add(key, value); err != nil {
			return nil, fmt.Errorf("invalid meta %q: %w", pair, err)
		}
	}
	return p, nil
}

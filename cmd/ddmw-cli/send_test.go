package main

import (
	"errors"
	"strings"
	"testing"

	"ddmw-cli/internal/msg"
	"ddmw-cli/internal/proto"
)

func TestParseMetaPairs(t *testing.T) {
	t.Parallel()

	p, err := parseMetaPairs([]string{"Subject=greetings", "Priority=3"})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Get("Subject"); got != "greetings" {
		t.Errorf("Subject = %q", got)
	}
	if got, _ := p.Get("Priority"); got != "3" {
		t.Errorf("Priority = %q", got)
	}
}

func TestParseMetaPairsValueWithEquals(t *testing.T) {
	t.Parallel()

	p, err := parseMetaPairs([]string{"Query=a=b"})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := p.Get("Query"); got != "a=b" {
		t.Errorf("Query = %q", got)
	}
}

func TestParseMetaPairsMissingEquals(t *testing.T) {
	t.Parallel()

	if _, err := parseMetaPairs([]string{"nokey"}); err == nil {
		t.Error("expected error for pair without '='")
	}
}

func TestParseMetaPairsBadKey(t *testing.T) {
	t.Parallel()

	_, err := parseMetaPairs([]string{"bad key=v"})
	if !errors.Is(err, proto.ErrBadFormat) {
		t.Errorf("err = %v, want ErrBadFormat", err)
	}
}

func TestSendChannelRequired(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetArgs([]string{"send"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error when --channel is missing")
	}
}

func TestSendMetaAndMetaFileExclusive(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetArgs([]string{"send", "--channel", "1", "-m", "a=b", "--meta-file", "/tmp/x"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for both --meta and --meta-file")
	}
}

func TestBuildMsgInfoInlinePayload(t *testing.T) {
	t.Parallel()

	cfg := &rootConfig{}
	cmd := buildRootCmd(cfg)
	sendCmd, _, err := cmd.Find([]string{"send"})
	if err != nil {
		t.Fatal(err)
	}
	if err := sendCmd.Flags().Set("payload", "hello"); err != nil {
		t.Fatal(err)
	}

	mi, err := buildMsgInfo(sendCmd, &sendConfig{payload: "hello", cmdCode: 7})
	if err != nil {
		t.Fatal(err)
	}
	if mi.Cmd != 7 {
		t.Errorf("Cmd = %d", mi.Cmd)
	}
	bc, ok := mi.Payload.(msg.BytesContent)
	if !ok {
		t.Fatalf("Payload is %T, want BytesContent", mi.Payload)
	}
	if string(bc.Data) != "hello" {
		t.Errorf("payload = %q", bc.Data)
	}
}

func TestBuildMsgInfoMetaPairs(t *testing.T) {
	t.Parallel()

	cfg := &rootConfig{}
	cmd := buildRootCmd(cfg)
	cmd.SetIn(strings.NewReader(""))
	sendCmd, _, err := cmd.Find([]string{"send"})
	if err != nil {
		t.Fatal(err)
	}

	mi, err := buildMsgInfo(sendCmd, &sendConfig{meta: []string{"Subject=hi"}})
	if err != nil {
		t.Fatal(err)
	}
	pc, ok := mi.Meta.(msg.ParamsContent)
	if !ok {
		t.Fatalf("Meta is %T, want ParamsContent", mi.Meta)
	}
	if got, _ := pc.Params.Get("Subject"); got != "hi" {
		t.Errorf("Subject = %q", got)
	}
}

func TestBuildMsgInfoFilePayload(t *testing.T) {
	t.Parallel()

	cfg := &rootConfig{}
	cmd := buildRootCmd(cfg)
	sendCmd, _, err := cmd.Find([]string{"send"})
	if err != nil {
		t.Fatal(err)
	}

	mi, err := buildMsgInfo(sendCmd, &sendConfig{payloadFile: "/tmp/payload.bin", metaFile: "/tmp/meta"})
	if err != nil {
		t.Fatal(err)
	}
	if fc, ok := mi.Payload.(msg.FileContent); !ok || fc.Path != "/tmp/payload.bin" {
		t.Errorf("Payload = %#v", mi.Payload)
	}
	if fc, ok := mi.Meta.(msg.FileContent); !ok || fc.Path != "/tmp/meta" {
		t.Errorf("Meta = %#v", mi.Meta)
	}
}

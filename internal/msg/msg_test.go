package msg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"ddmw-cli/internal/auth"
	"ddmw-cli/internal/conn"
	"ddmw-cli/internal/proto"
)

// readBlock reads one text block from r, up to the terminating empty line.
func readBlock(t *testing.T, r io.Reader) string {
	t.Helper()
	var out []byte
	b := make([]byte, 1)
	for {
		if _, err := r.Read(b); err != nil {
			t.Errorf("peer read: %v", err)
			return string(out)
		}
		out = append(out, b[0])
		if bytes.HasSuffix(out, []byte("\n\n")) {
			return string(out)
		}
	}
}

// parseBlock splits a text block into its topic and parameter map.
func parseBlock(block string) (topic string, params map[string]string) {
	params = make(map[string]string)
	for i, line := range strings.Split(strings.TrimSuffix(block, "\n\n"), "\n") {
		if i == 0 {
			topic = line
			continue
		}
		if k, v, ok := strings.Cut(line, " "); ok {
			params[k] = v
		}
	}
	return topic, params
}

func pipePair(t *testing.T) (*conn.Conn, net.Conn) {
	t.Helper()
	client, peer := net.Pipe()
	c := conn.New(client)
	t.Cleanup(func() {
		_ = c.Close()
		_ = peer.Close()
	})
	return c, peer
}

func TestSendNoContent(t *testing.T) {
	t.Parallel()

	c, peer := pipePair(t)
	requests := make(chan string, 1)
	go func() {
		requests <- readBlock(t, peer)
		_, _ = peer.Write([]byte("Ok\nXferId tid-1\n\n"))
	}()

	xferID, err := Send(context.Background(), c, 3, &MsgInfo{Cmd: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if xferID != "tid-1" {
		t.Errorf("xferID=%q, want %q", xferID, "tid-1")
	}

	topic, params := parseBlock(<-requests)
	if topic != "Msg" {
		t.Errorf("topic=%q, want Msg", topic)
	}
	if params["_Ch"] != "3" || params["Cmd"] != "7" {
		t.Errorf("params=%v", params)
	}
	if _, ok := params["MetaLen"]; ok {
		t.Error("MetaLen present without metadata")
	}
	if _, ok := params["Len"]; ok {
		t.Error("Len present without payload")
	}
}

func TestSendZeroCmdOmitted(t *testing.T) {
	t.Parallel()

	c, peer := pipePair(t)
	requests := make(chan string, 1)
	go func() {
		requests <- readBlock(t, peer)
		_, _ = peer.Write([]byte("Ok\nXferId tid-2\n\n"))
	}()

	if _, err := Send(context.Background(), c, 1, &MsgInfo{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, params := parseBlock(<-requests)
	if _, ok := params["Cmd"]; ok {
		t.Error("Cmd present for command code zero")
	}
}

func TestSendMetaAndPayload(t *testing.T) {
	t.Parallel()

	meta := proto.NewParams()
	if err := meta.Add("Subject", "greetings"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload := []byte("hello, node")

	c, peer := pipePair(t)
	type exchange struct {
		control string
		meta    string
		payload string
	}
	done := make(chan exchange, 1)
	go func() {
		var ex exchange
		ex.control = readBlock(t, peer)
		_, _ = peer.Write([]byte("Ok\nXferId tid-3\n\n"))

		_, params := parseBlock(ex.control)
		metaLen, _ := strconv.Atoi(params["MetaLen"])
		buf := make([]byte, metaLen)
		if _, err := io.ReadFull(peer, buf); err != nil {
			t.Errorf("peer meta read: %v", err)
		}
		ex.meta = string(buf)
		_, _ = peer.Write([]byte("Ok\n\n"))

		payloadLen, _ := strconv.Atoi(params["Len"])
		buf = make([]byte, payloadLen)
		if _, err := io.ReadFull(peer, buf); err != nil {
			t.Errorf("peer payload read: %v", err)
		}
		ex.payload = string(buf)
		_, _ = peer.Write([]byte("Ok\n\n"))
		done <- ex
	}()

	xferID, err := Send(context.Background(), c, 2, &MsgInfo{
		Meta:    ParamsContent{Params: meta},
		Payload: BytesContent{Data: payload},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if xferID != "tid-3" {
		t.Errorf("xferID=%q, want %q", xferID, "tid-3")
	}

	ex := <-done
	_, params := parseBlock(ex.control)
	if params["MetaLen"] != strconv.Itoa(meta.EncodedSize()) {
		t.Errorf("MetaLen=%q, want %d", params["MetaLen"], meta.EncodedSize())
	}
	if params["Len"] != strconv.Itoa(len(payload)) {
		t.Errorf("Len=%q, want %d", params["Len"], len(payload))
	}
	if ex.meta != "Subject greetings\n\n" {
		t.Errorf("meta section=%q", ex.meta)
	}
	if ex.payload != string(payload) {
		t.Errorf("payload section=%q, want %q", ex.payload, payload)
	}
}

func TestSendFilePayload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "payload.bin")
	content := []byte("file payload bytes")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, peer := pipePair(t)
	received := make(chan string, 1)
	go func() {
		control := readBlock(t, peer)
		_, _ = peer.Write([]byte("Ok\nXferId tid-4\n\n"))

		_, params := parseBlock(control)
		n, _ := strconv.Atoi(params["Len"])
		buf := make([]byte, n)
		if _, err := io.ReadFull(peer, buf); err != nil {
			t.Errorf("peer payload read: %v", err)
		}
		received <- string(buf)
		_, _ = peer.Write([]byte("Ok\n\n"))
	}()

	if _, err := Send(context.Background(), c, 1, &MsgInfo{
		Payload: FileContent{Path: path},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := <-received; got != string(content) {
		t.Errorf("payload=%q, want %q", got, content)
	}
}

func TestSendMissingXferID(t *testing.T) {
	t.Parallel()

	c, peer := pipePair(t)
	go func() {
		readBlock(t, peer)
		_, _ = peer.Write([]byte("Ok\n\n"))
	}()

	_, err := Send(context.Background(), c, 1, &MsgInfo{})
	if !errors.Is(err, proto.ErrMissingData) {
		t.Fatalf("expected ErrMissingData, got %v", err)
	}
}

func TestSendZeroSizeContentIsAbsent(t *testing.T) {
	t.Parallel()

	c, peer := pipePair(t)
	requests := make(chan string, 1)
	go func() {
		requests <- readBlock(t, peer)
		_, _ = peer.Write([]byte("Ok\nXferId tid-5\n\n"))
	}()

	xferID, err := Send(context.Background(), c, 1, &MsgInfo{
		Payload: BytesContent{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if xferID != "tid-5" {
		t.Errorf("xferID=%q, want %q", xferID, "tid-5")
	}
	_, params := parseBlock(<-requests)
	if _, ok := params["Len"]; ok {
		t.Error("Len present for zero-size payload")
	}
}

func TestSendSectionFail(t *testing.T) {
	t.Parallel()

	c, peer := pipePair(t)
	go func() {
		control := readBlock(t, peer)
		_, _ = peer.Write([]byte("Ok\nXferId tid-6\n\n"))

		_, params := parseBlock(control)
		n, _ := strconv.Atoi(params["Len"])
		buf := make([]byte, n)
		if _, err := io.ReadFull(peer, buf); err != nil {
			t.Errorf("peer payload read: %v", err)
		}
		_, _ = peer.Write([]byte("Fail\nReason quota\n\n"))
	}()

	_, err := Send(context.Background(), c, 1, &MsgInfo{
		Payload: BytesContent{Data: []byte("data")},
	})
	var se *proto.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if v, _ := se.Params.Get("Reason"); v != "quota" {
		t.Errorf("Reason=%q, want %q", v, "quota")
	}
}

func TestConnSendOverTCP(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer ln.Close()

	type session struct {
		auth    string
		control string
		payload string
	}
	done := make(chan session, 1)
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer nc.Close()

		var s session
		s.auth = readBlock(t, nc)
		_, _ = nc.Write([]byte("Ok\n\n"))

		s.control = readBlock(t, nc)
		_, _ = nc.Write([]byte("Ok\nXferId tid-7\n\n"))

		_, params := parseBlock(s.control)
		n, _ := strconv.Atoi(params["Len"])
		buf := make([]byte, n)
		if _, err := io.ReadFull(nc, buf); err != nil {
			t.Errorf("peer payload read: %v", err)
		}
		s.payload = string(buf)
		_, _ = nc.Write([]byte("Ok\n\n"))
		done <- s
	}()

	xferID, err := ConnSend(context.Background(),
		conn.Endpoint{Addr: ln.Addr().String()},
		auth.FromAccPass("alice", "hunter2"),
		5,
		&MsgInfo{Payload: BytesContent{Data: []byte("over tcp")}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if xferID != "tid-7" {
		t.Errorf("xferID=%q, want %q", xferID, "tid-7")
	}

	s := <-done
	topic, params := parseBlock(s.auth)
	if topic != "Auth" || params["AccName"] != "alice" {
		t.Errorf("auth request: topic=%q params=%v", topic, params)
	}
	if s.payload != "over tcp" {
		t.Errorf("payload=%q, want %q", s.payload, "over tcp")
	}
}

package rcon_test

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/cloudblocks/internal/monitoring"
	"github.com/banshee-data/cloudblocks/internal/rcon"
	"github.com/banshee-data/cloudblocks/internal/rcon/rcontest"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestEncode_Layout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, rcon.Encode(&buf, rcon.Packet{ID: 7, Type: rcon.TypeExecCommand, Body: "list"}))
	want := []byte{
		14, 0, 0, 0, // length: 4 + 4 + 4 + 2
		7, 0, 0, 0,
		2, 0, 0, 0,
		'l', 'i', 's', 't',
		0, 0,
	}
	assert.Equal(t, want, buf.Bytes())

	got, err := rcon.Decode(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, rcon.Packet{ID: 7, Type: 2, Body: "list"}, got)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	short := []byte{4, 0, 0, 0, 1, 0, 0, 0}
	_, err := rcon.Decode(bufio.NewReader(bytes.NewReader(short)))
	assert.ErrorContains(t, err, "invalid packet length")

	noTerm := []byte{10, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 'x', 'y'}
	_, err = rcon.Decode(bufio.NewReader(bytes.NewReader(noTerm)))
	assert.ErrorContains(t, err, "terminator")

	cut := []byte{14, 0, 0, 0, 1, 0}
	_, err = rcon.Decode(bufio.NewReader(bytes.NewReader(cut)))
	assert.Error(t, err)
}

func startServer(t *testing.T, configure func(*rcontest.Server)) *rcontest.Server {
	t.Helper()
	srv := rcontest.NewUnstartedServer("hunter2")
	if configure != nil {
		configure(srv)
	}
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Close() })
	return srv
}

func dial(t *testing.T, srv *rcontest.Server) *rcon.Client {
	t.Helper()
	c, err := rcon.Dial(context.Background(), srv.Addr(), rcon.Options{DialTimeout: time.Second, IOTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_AuthenticateAndSend(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(s *rcontest.Server) {
		s.PreambleOnAuth = true
		s.Reply = func(cmd string) string { return "Changed the block at " + strings.TrimPrefix(cmd, "setblock ") }
	})
	c := dial(t, srv)

	require.NoError(t, c.Authenticate("hunter2"))
	reply, err := c.SendCommand("setblock 1 2 3 minecraft:red_wool")
	require.NoError(t, err)
	assert.Equal(t, "Changed the block at 1 2 3 minecraft:red_wool", reply)

	_, err = c.SendCommand("setblock 4 5 6 minecraft:blue_wool")
	require.NoError(t, err)

	assert.Equal(t, []string{"setblock 1 2 3 minecraft:red_wool", "setblock 4 5 6 minecraft:blue_wool"}, srv.Commands())
	assert.Equal(t, 1, srv.Logins())
	assert.Equal(t, 2, c.Sent())
}

func TestClient_WrongPassword(t *testing.T) {
	t.Parallel()

	srv := startServer(t, nil)
	c := dial(t, srv)

	err := c.Authenticate("wrong")
	assert.ErrorIs(t, err, rcon.ErrAuthentication)

	_, err = c.SendCommand("say hi")
	assert.ErrorIs(t, err, rcon.ErrAuthentication)
	assert.Empty(t, srv.Commands())
}

func TestClient_OversizeCommand(t *testing.T) {
	t.Parallel()

	srv := startServer(t, nil)
	c := dial(t, srv)
	require.NoError(t, c.Authenticate("hunter2"))

	_, err := c.SendCommand(strings.Repeat("x", rcon.MaxCommandLen+1))
	assert.ErrorIs(t, err, rcon.ErrCommandRejected)

	_, err = c.SendCommand("list")
	assert.NoError(t, err, "connection stays usable")
}

func TestClient_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := startServer(t, func(s *rcontest.Server) { s.DropAfter = 2 })
	c := dial(t, srv)
	require.NoError(t, c.Authenticate("hunter2"))

	_, err := c.SendCommand("first")
	require.NoError(t, err)

	_, err = c.SendCommand("second")
	assert.ErrorIs(t, err, rcon.ErrTransport)

	_, err = c.SendCommand("third")
	assert.ErrorIs(t, err, rcon.ErrTransport)
	assert.Equal(t, []string{"first", "second"}, srv.Commands())
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	srv := startServer(t, nil)
	c := dial(t, srv)
	require.NoError(t, c.Authenticate("hunter2"))

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close())

	_, err := c.SendCommand("list")
	assert.ErrorIs(t, err, rcon.ErrTransport)
}

func TestDial_Refused(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = rcon.Dial(context.Background(), addr, rcon.Options{DialTimeout: time.Second})
	assert.ErrorIs(t, err, rcon.ErrTransport)
}

func TestClient_MismatchedResponseID(t *testing.T) {
	t.Parallel()

	clientEnd, serverEnd := net.Pipe()
	defer serverEnd.Close()

	go func() {
		r := bufio.NewReader(serverEnd)
		auth, err := rcon.Decode(r)
		if err != nil {
			return
		}
		rcon.Encode(serverEnd, rcon.Packet{ID: auth.ID, Type: rcon.TypeAuthResponse})
		cmd, err := rcon.Decode(r)
		if err != nil {
			return
		}
		rcon.Encode(serverEnd, rcon.Packet{ID: cmd.ID + 100, Type: rcon.TypeResponseValue, Body: "stale"})
	}()

	c := rcon.NewClient(clientEnd, rcon.Options{IOTimeout: 5 * time.Second})
	defer c.Close()
	require.NoError(t, c.Authenticate("any"))

	body, err := c.SendCommand("list")
	assert.ErrorIs(t, err, rcon.ErrCommandRejected)
	assert.Equal(t, "stale", body)
}

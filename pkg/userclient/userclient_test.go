package userclient

import (
	"net"
	"testing"

	"github.com/mash-protocol/mash-go/pkg/messages"
	"github.com/mash-protocol/mash-go/pkg/spake2plus"
	"github.com/mash-protocol/mash-go/pkg/transport"
	"github.com/stretchr/testify/require"
)

// fakeGateway accepts exactly one connection, reads the IntroMessage and
// one request frame, and replies with whatever respond returns.
func fakeGateway(t *testing.T, respond func(req interface{}) interface{}) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		defer ln.Close()

		framer := transport.NewFramer(conn)

		introData, err := framer.ReadFrame()
		if err != nil {
			return
		}
		if _, err := messages.Decode(introData); err != nil {
			return
		}

		reqData, err := framer.ReadFrame()
		if err != nil {
			return
		}
		req, err := messages.Decode(reqData)
		if err != nil {
			return
		}

		resp := respond(req)
		data, err := messages.Encode(resp)
		if err != nil {
			return
		}
		_ = framer.WriteFrame(data)
	}()

	return ln.Addr().String()
}

func TestEnrollUserSucceedsOnMatchingResponse(t *testing.T) {
	addr := fakeGateway(t, func(req interface{}) interface{} {
		er := req.(*messages.EnrollRequest)
		return &messages.EnrollResponse{Username: er.Username, Timestamp: er.Timestamp}
	})

	err := EnrollUser(addr, 42, "alice", "hunter2", 1)
	require.NoError(t, err)
}

func TestEnrollUserRejectsMismatchedUsername(t *testing.T) {
	addr := fakeGateway(t, func(req interface{}) interface{} {
		return &messages.EnrollResponse{Username: "someone-else", Timestamp: 1}
	})

	err := EnrollUser(addr, 42, "alice", "hunter2", 1)
	require.Error(t, err)
}

func TestLoginUserCompletesSpake2PlusRoundTrip(t *testing.T) {
	password := "hunter2"
	username := "alice"

	verifier, err := spake2plus.PasswordToSecretB([]byte(password), []byte(username), []byte("gateway"))
	require.NoError(t, err)

	addr := fakeGateway(t, func(req interface{}) interface{} {
		lr := req.(*messages.LoginRequest)

		server, err := spake2plus.NewServerRole(verifier, []byte(lr.Username), []byte("gateway"))
		require.NoError(t, err)
		v := server.Start()
		_, err = server.Finish(lr.U)
		require.NoError(t, err)

		return &messages.LoginResponse{
			Username:     lr.Username,
			V:            v,
			Confirmation: server.Confirmation(),
			Timestamp:    lr.Timestamp,
		}
	})

	key, err := LoginUser(addr, 42, username, password, 2)
	require.NoError(t, err)
	require.NotEmpty(t, key)
}

func TestLoginUserRejectsWrongPassword(t *testing.T) {
	verifier, err := spake2plus.PasswordToSecretB([]byte("correct"), []byte("bob"), []byte("gateway"))
	require.NoError(t, err)

	addr := fakeGateway(t, func(req interface{}) interface{} {
		lr := req.(*messages.LoginRequest)
		server, err := spake2plus.NewServerRole(verifier, []byte(lr.Username), []byte("gateway"))
		require.NoError(t, err)
		v := server.Start()
		_, err = server.Finish(lr.U)
		require.NoError(t, err)
		return &messages.LoginResponse{
			Username:     lr.Username,
			V:            v,
			Confirmation: server.Confirmation(),
			Timestamp:    lr.Timestamp,
		}
	})

	_, err = LoginUser(addr, 42, "bob", "wrong", 2)
	require.Error(t, err)
}

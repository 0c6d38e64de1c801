// Package userclient is the thin, synchronous user-side driver for
// enrollment and login. It is deliberately outside the cooperative
// event-loop world of pkg/node: it opens one connection to the gateway per
// call, blocks until the gateway answers, and closes. Session management,
// retries, and connection reuse across calls are explicitly out of scope.
package userclient

import (
	"fmt"
	"net"
	"time"

	"github.com/mash-protocol/mash-go/pkg/messages"
	"github.com/mash-protocol/mash-go/pkg/spake2plus"
	"github.com/mash-protocol/mash-go/pkg/transport"
)

// DialTimeout bounds how long a call waits to connect to the gateway.
const DialTimeout = 5 * time.Second

// roundTrip opens a connection to the gateway, introduces itself as
// userID, sends req, and returns the first framed reply.
func roundTrip(gatewayAddr string, userID uint32, req interface{}) (interface{}, error) {
	conn, err := net.DialTimeout("tcp", gatewayAddr, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("userclient: dialing gateway %s: %w", gatewayAddr, err)
	}
	defer conn.Close()

	framer := transport.NewFramer(conn)

	intro := &messages.IntroMessage{ID: userID}
	data, err := messages.Encode(intro)
	if err != nil {
		return nil, fmt.Errorf("userclient: encoding intro: %w", err)
	}
	if err := framer.WriteFrame(data); err != nil {
		return nil, fmt.Errorf("userclient: sending intro: %w", err)
	}

	data, err = messages.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("userclient: encoding request: %w", err)
	}
	if err := framer.WriteFrame(data); err != nil {
		return nil, fmt.Errorf("userclient: sending request: %w", err)
	}

	respData, err := framer.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("userclient: reading response: %w", err)
	}
	resp, err := messages.Decode(respData)
	if err != nil {
		return nil, fmt.Errorf("userclient: decoding response: %w", err)
	}
	return resp, nil
}

// EnrollUser registers username/password with the cluster reachable
// through gatewayAddr. userID identifies this connection to the gateway
// (it has no relation to any replica or gateway node id; any value unique
// enough not to collide with a concurrent enrollment is fine).
func EnrollUser(gatewayAddr string, userID uint32, username, password string, timestamp uint64) error {
	req := &messages.EnrollRequest{
		Username:  username,
		Password:  password,
		UserID:    userID,
		Timestamp: timestamp,
	}
	resp, err := roundTrip(gatewayAddr, userID, req)
	if err != nil {
		return err
	}
	enrollResp, ok := resp.(*messages.EnrollResponse)
	if !ok {
		return fmt.Errorf("userclient: enroll: unexpected response type %T", resp)
	}
	if enrollResp.Username != username {
		return fmt.Errorf("userclient: enroll: response for %q does not match request for %q", enrollResp.Username, username)
	}
	return nil
}

// LoginUser authenticates username/password against the cluster reachable
// through gatewayAddr, running the user side of SPAKE2+ against the
// gateway's response. On success it returns the shared session key; the
// gateway's key-confirmation tag has already been verified by the time
// this returns.
func LoginUser(gatewayAddr string, userID uint32, username, password string, timestamp uint64) ([]byte, error) {
	client, err := spake2plus.NewClientRole([]byte(password), []byte(username), []byte("gateway"))
	if err != nil {
		return nil, fmt.Errorf("userclient: login: starting SPAKE2+ client role: %w", err)
	}
	u := client.Start()

	req := &messages.LoginRequest{
		Username:  username,
		U:         u,
		UserID:    userID,
		Timestamp: timestamp,
	}
	resp, err := roundTrip(gatewayAddr, userID, req)
	if err != nil {
		return nil, err
	}
	loginResp, ok := resp.(*messages.LoginResponse)
	if !ok {
		return nil, fmt.Errorf("userclient: login: unexpected response type %T", resp)
	}
	if loginResp.Username != username {
		return nil, fmt.Errorf("userclient: login: response for %q does not match request for %q", loginResp.Username, username)
	}

	key, _, err := client.Finish(loginResp.V)
	if err != nil {
		return nil, fmt.Errorf("userclient: login: finishing SPAKE2+: %w", err)
	}
	if err := client.VerifyServerConfirmation(loginResp.Confirmation); err != nil {
		return nil, fmt.Errorf("userclient: login: rejecting gateway: %w", err)
	}
	return key, nil
}

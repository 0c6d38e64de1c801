// Command user is a one-shot CLI driver for enrollment and login,
// exercising pkg/userclient against a running gateway. It has no session
// state between invocations: each run opens one connection, makes one
// request, and exits.
//
// Usage:
//
//	user -gateway 127.0.0.1:9100 -username alice -password hunter2 -mode enroll
//	user -gateway 127.0.0.1:9100 -username alice -password hunter2 -mode login
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/mash-protocol/mash-go/pkg/userclient"
)

// Config holds the user CLI's flags.
type Config struct {
	GatewayAddr string
	Username    string
	Password    string
	Mode        string
	UserID      uint
}

var cfg Config

func init() {
	flag.StringVar(&cfg.GatewayAddr, "gateway", "", "Gateway address (host:port)")
	flag.StringVar(&cfg.Username, "username", "", "Username")
	flag.StringVar(&cfg.Password, "password", "", "Password")
	flag.StringVar(&cfg.Mode, "mode", "", "Operation: enroll or login")
	flag.UintVar(&cfg.UserID, "user-id", 0, "Connection identity presented to the gateway (random if 0)")
}

func main() {
	flag.Parse()

	if cfg.GatewayAddr == "" {
		log.Fatal("user: -gateway is required")
	}
	if cfg.Username == "" {
		log.Fatal("user: -username is required")
	}
	if cfg.Password == "" {
		log.Fatal("user: -password is required")
	}

	userID := uint32(cfg.UserID)
	if userID == 0 {
		userID = rand.Uint32()
	}
	timestamp := uint64(time.Now().UnixNano())

	switch cfg.Mode {
	case "enroll":
		if err := userclient.EnrollUser(cfg.GatewayAddr, userID, cfg.Username, cfg.Password, timestamp); err != nil {
			log.Fatalf("user: enroll failed: %v", err)
		}
		fmt.Println("enrollment succeeded")
	case "login":
		key, err := userclient.LoginUser(cfg.GatewayAddr, userID, cfg.Username, cfg.Password, timestamp)
		if err != nil {
			log.Fatalf("user: login failed: %v", err)
		}
		fmt.Printf("login succeeded, session key %s\n", hex.EncodeToString(key))
	default:
		log.Fatalf("user: -mode must be 'enroll' or 'login', got %q", cfg.Mode)
	}
}

package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tcrypto "github.com/tchatsapp/core/pkg/crypto"
	"github.com/tchatsapp/core/pkg/messages"
	"github.com/tchatsapp/core/pkg/registry"

	"github.com/tchatsapp/core/pkg/client"
)

const identityName = "device"

var (
	addr         = flag.String("addr", envString("TCHATSAPP_ADDR", "127.0.0.1:1666"), "relay address")
	pseudo       = flag.String("pseudo", "", "pseudo to register with (omit to authenticate an existing user)")
	userID       = flag.Uint("user-id", 0, "existing user id to authenticate as")
	password     = flag.String("password", "", "account password, hashed locally before it ever reaches the relay")
	peer         = flag.Uint("peer", 0, "peer id to establish a session with and message")
	message      = flag.String("message", "", "text to send to -peer once connected")
	keystoreDir  = flag.String("keystore-dir", envString("TCHATSAPP_KEYSTORE_DIR", "./data/keystore"), "directory for this device's at-rest identity")
	passphrase   = flag.String("passphrase", "", "passphrase unlocking the local key store (required)")
)

func main() {
	flag.Parse()

	if *passphrase == "" {
		log.Fatal("-passphrase is required to unlock the local key store")
	}

	if _, err := loadOrCreateDeviceIdentity(*keystoreDir, *passphrase); err != nil {
		log.Fatalf("device identity: %v", err)
	}

	reg := registry.New()
	messages.RegisterAll(reg)

	c := client.New(*addr, reg, uint32(*userID))
	c.OnIncoming(func(kind registry.MessageType, fromID uint32, body []byte) {
		msg, err := reg.Decode(kind, body)
		if err != nil {
			log.Printf("incoming %d from %d: decode error: %v", kind, fromID, err)
			return
		}
		if text, ok := msg.(*messages.TextMessage); ok {
			fmt.Printf("[%d] %s\n", fromID, text.Body)
			return
		}
		log.Printf("incoming %d from %d: %+v", kind, fromID, msg)
	})
	c.OnDeliveryStatus(func(status messages.AckStatus, reason messages.AckFailureReason) {
		if status == messages.AckFailed {
			log.Printf("delivery failed: reason code %d", reason)
		}
	})

	if err := c.Connect(); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()
	log.Printf("connected to %s", *addr)

	assignedID, err := bootstrap(c)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	log.Printf("assigned id %d", assignedID)

	if *peer != 0 {
		if err := c.EnsureSession(uint32(*peer)); err != nil {
			log.Fatalf("ensure session with %d: %v", *peer, err)
		}
		log.Printf("session established with %d", *peer)

		if *message != "" {
			if _, err := c.SendMessage(uint32(*peer), registry.Text, &messages.TextMessage{Body: *message}); err != nil {
				log.Fatalf("send message: %v", err)
			}
			log.Printf("sent to %d: %s", *peer, *message)
		}
	}

	waitForInterrupt()
}

func bootstrap(c *client.Client) (uint32, error) {
	passwordHash := tcrypto.HashPassword(*password)
	if *pseudo != "" {
		return c.Register(*pseudo, passwordHash)
	}
	return c.Authenticate(uint32(*userID), passwordHash)
}

// loadOrCreateDeviceIdentity persists this device's long-term X25519
// identity at rest so repeated runs keep using the same key material
// rather than generating a fresh one every launch.
func loadOrCreateDeviceIdentity(dir, passphrase string) (*tcrypto.Identity, error) {
	salt := []byte("tchatsapp-keystore-salt")
	masterKey := tcrypto.DeriveMasterKey(passphrase, salt)

	ks, err := tcrypto.OpenKeyStore(dir, masterKey)
	if err != nil {
		return nil, err
	}

	id, err := ks.Load(identityName)
	if err == nil {
		return id, nil
	}
	if err != tcrypto.ErrKeyNotFound {
		return nil, err
	}

	id, err = tcrypto.GenerateIdentity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := ks.Save(identityName, id); err != nil {
		return nil, fmt.Errorf("save identity: %w", err)
	}
	return id, nil
}

func waitForInterrupt() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	fmt.Println("press ctrl+c to disconnect")
	go func() {
		reader := bufio.NewReader(os.Stdin)
		for {
			if _, err := reader.ReadString('\n'); err != nil {
				return
			}
		}
	}()
	<-sigCh
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

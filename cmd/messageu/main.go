package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/Natifishman/MessageU/pkg/config"
	"github.com/Natifishman/MessageU/pkg/crypto"
	"github.com/Natifishman/MessageU/pkg/engine"
	"github.com/Natifishman/MessageU/pkg/identity"
	"github.com/Natifishman/MessageU/pkg/protocol"
	"github.com/Natifishman/MessageU/pkg/registry"
	"github.com/Natifishman/MessageU/pkg/transport"
)

var settingsPath = flag.String("config", config.DefaultSettingsPath, "Path to optional settings file")

const menu = `MessageU client at your service.

110) Register
120) Request for clients list
130) Request for public key
140) Request for waiting messages
150) Send a text message
151) Send a request for symmetric key
152) Send your symmetric key
153) Send a file
0) Exit client
`

func main() {
	flag.Parse()

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		log.Fatalf("settings %s: %v", *settingsPath, err)
	}

	client := engine.New(settings, nil)
	defer client.Close()

	if err := client.Prepare(); err != nil {
		fmt.Println(render(err))
		fmt.Print(client.LastError())
		os.Exit(1)
	}
	if client.Registered() {
		fmt.Printf("Hello %s, welcome back.\n", client.SelfName())
	}

	stdin := bufio.NewScanner(os.Stdin)
	for {
		fmt.Println()
		fmt.Print(menu)
		fmt.Print("? ")

		if !stdin.Scan() {
			return
		}

		switch strings.TrimSpace(stdin.Text()) {
		case "110":
			doRegister(client, stdin)
		case "120":
			doListUsers(client)
		case "130":
			doFetchKey(client, stdin)
		case "140":
			doFetchPending(client)
		case "150":
			doSend(client, stdin, protocol.MsgText)
		case "151":
			doSend(client, stdin, protocol.MsgKeyRequest)
		case "152":
			doSend(client, stdin, protocol.MsgKeySend)
		case "153":
			doSend(client, stdin, protocol.MsgFile)
		case "0":
			fmt.Println("Goodbye.")
			return
		default:
			fmt.Println("Unknown option.")
		}
	}
}

func prompt(stdin *bufio.Scanner, label string) string {
	fmt.Print(label)
	if !stdin.Scan() {
		return ""
	}
	return strings.TrimSpace(stdin.Text())
}

func doRegister(client *engine.Client, stdin *bufio.Scanner) {
	name := prompt(stdin, "Name: ")
	if err := client.Register(name); err != nil {
		report(client, err)
		return
	}
	fmt.Printf("Registered as %s.\n", client.SelfName())
}

func doListUsers(client *engine.Client) {
	if err := client.FetchUsers(); err != nil {
		report(client, err)
		return
	}

	users := client.UsersSorted()
	if len(users) == 0 {
		fmt.Println("No other clients registered.")
		return
	}
	for _, name := range users {
		fmt.Println(name)
	}
}

func doFetchKey(client *engine.Client, stdin *bufio.Scanner) {
	name := prompt(stdin, "User: ")
	if err := client.FetchPublicKey(name); err != nil {
		report(client, err)
		return
	}
	fmt.Printf("Public key for %s received.\n", name)
}

func doFetchPending(client *engine.Client) {
	msgs, err := client.FetchPending()
	if err != nil {
		report(client, err)
		return
	}

	for _, m := range msgs {
		fmt.Printf("From: %s\nContent:\n%s\n-----<EOM>-----\n", m.From, m.Body)
	}
	if warnings := client.LastError(); warnings != "" {
		fmt.Print(warnings)
	}
	if len(msgs) == 0 {
		fmt.Println("No waiting messages.")
	}
}

func doSend(client *engine.Client, stdin *bufio.Scanner, kind uint8) {
	name := prompt(stdin, "To: ")

	var data string
	switch kind {
	case protocol.MsgText:
		data = prompt(stdin, "Message: ")
	case protocol.MsgFile:
		data = prompt(stdin, "File path: ")
	}

	if err := client.SendMessage(name, kind, data); err != nil {
		report(client, err)
		return
	}
	fmt.Println("Message sent.")
}

func report(client *engine.Client, err error) {
	fmt.Println(render(err))
	if details := client.LastError(); details != "" {
		fmt.Print(details)
	}
}

// render maps an error kind to the sentence shown to the user
func render(err error) string {
	switch {
	case errors.Is(err, protocol.ErrInvalidName):
		return "Names must be alphanumeric and shorter than 255 characters."
	case errors.Is(err, engine.ErrNotRegistered):
		return "Register first (option 110)."
	case errors.Is(err, engine.ErrAlreadyRegistered):
		return "This client is already registered."
	case errors.Is(err, engine.ErrSelfTarget):
		return "You cannot target yourself."
	case errors.Is(err, engine.ErrPreconditionMissing):
		return "Key exchange with this user is not complete yet."
	case errors.Is(err, engine.ErrFileNotFound):
		return "That file could not be read."
	case errors.Is(err, registry.ErrUnknownPeer):
		return "Unknown user. Refresh the clients list (option 120)."
	case errors.Is(err, protocol.ErrServerFailure):
		return "Server responded with an error."
	case errors.Is(err, transport.ErrConnectFailed),
		errors.Is(err, transport.ErrWriteFailed),
		errors.Is(err, transport.ErrPeerClosed):
		return "Communication with the server failed."
	case errors.Is(err, transport.ErrTimeout):
		return "The server did not respond in time."
	case errors.Is(err, config.ErrConfigMissing),
		errors.Is(err, config.ErrConfigMalformed),
		errors.Is(err, identity.ErrMalformed):
		return "Client configuration is missing or malformed."
	case errors.Is(err, crypto.ErrCryptoDecrypt),
		errors.Is(err, crypto.ErrCryptoEncrypt):
		return "A cryptographic operation failed."
	}
	return "Operation failed: " + err.Error()
}

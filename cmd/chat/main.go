/*
Package main is a minimal terminal client for the relay.

It is deliberately thin: all conversation state lives in the chatclient
packages, and this binary only maps stdin lines onto them. Commands:

	/to <peer>      switch the active conversation
	/typing         toggle the typing indicator for the active peer
	/log            print the active conversation log
	/contacts       print the contact list
	/quit           exit

Anything else is sent as a message to the active peer.
*/
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dmrelay/internal/chatclient"
	"dmrelay/internal/chatclient/store"
	"dmrelay/internal/identity"
	"dmrelay/internal/pkg/logx"
	"dmrelay/internal/pkg/randx"
	"dmrelay/internal/relay"
)

func main() {
	serverURL := flag.String("server", "ws://localhost:3000/ws", "relay websocket URL")
	userID := flag.String("id", "", "local identity id (a guest id is generated when empty)")
	userName := flag.String("name", "", "local display name (defaults to the id)")
	token := flag.String("token", "", "optional identity token")
	dbPath := flag.String("db", "chat.db", "local store path")
	simulate := flag.Bool("simulate-presence", false, "randomize contact presence on a ticker")
	flag.Parse()

	logx.InitGlobalLogger(false)

	id := *userID
	if id == "" {
		generated, err := randx.GuestID()
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: Failed to generate guest id: %v\n", err)
			os.Exit(1)
		}
		id = generated
	}

	name := *userName
	if name == "" {
		name = id
	}

	local := identity.Identity{ID: id, Name: name}

	st, err := store.Open(*dbPath, local)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to open local store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	manager := chatclient.New(chatclient.Options{
		ServerURL:     *serverURL,
		Identity:      local,
		Token:         *token,
		AutoReconnect: true,
		OnMessage: func(msg relay.Message) {
			fmt.Printf("\n[%s] %s: %s\n> ", msg.Time, msg.From, msg.Text)
		},
		OnTyping: func(sig relay.TypingSignal) {
			if sig.IsTyping {
				fmt.Printf("\n%s is typing...\n> ", sig.From)
			}
		},
		OnError: func(p relay.ErrorPayload) {
			fmt.Printf("\nrelay error %d: %s\n> ", p.Code, p.Message)
		},
	}, st)

	manager.Connect()
	defer manager.Close()

	if *simulate {
		manager.StartPresenceSimulation(chatclient.DefaultPresenceInterval)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		manager.Close()
		st.Close()
		os.Exit(0)
	}()

	activePeer := ""
	if contacts := st.Contacts(); len(contacts) > 0 {
		activePeer = contacts[0].ID
	}

	fmt.Printf("Connected as %s (%s). Active peer: %s\n> ", local.Name, local.ID, activePeer)

	typing := false
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":

		case line == "/quit":
			return

		case strings.HasPrefix(line, "/to "):
			activePeer = strings.TrimSpace(strings.TrimPrefix(line, "/to "))
			fmt.Printf("Active peer: %s\n", activePeer)

		case line == "/typing":
			if activePeer != "" {
				typing = !typing
				manager.SendTyping(activePeer, typing)
			}

		case line == "/log":
			for _, msg := range st.Conversation(activePeer) {
				fmt.Printf("[%s] %s: %s\n", msg.Time, msg.From, msg.Text)
			}

		case line == "/contacts":
			for _, c := range st.Contacts() {
				status := "offline"
				if c.Online {
					status = "online"
				}
				fmt.Printf("%-12s %-16s %-8s %s\n", c.ID, c.Name, status, c.Last)
			}

		default:
			if activePeer == "" {
				fmt.Println("No active peer. Use /to <peer> first.")
				break
			}
			manager.Send(activePeer, line, "")
		}

		fmt.Print("> ")
	}
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/matheus3301/roomchat/internal/bus"
	"github.com/matheus3301/roomchat/internal/client"
	"github.com/matheus3301/roomchat/internal/protocol"
	"github.com/matheus3301/roomchat/internal/rest"
	"github.com/matheus3301/roomchat/internal/status"
	"github.com/matheus3301/roomchat/internal/transport"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	limitFlag := flag.Int("limit", 0, "history page size (defaults to the profile setting)")
	beforeFlag := flag.Int64("before", 0, "history: only messages older than this id")
	verboseFlag := flag.Bool("v", false, "mirror logs to stderr")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c, err := client.Load(*profileFlag, "roomchat", *verboseFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limit := *limitFlag
	if limit <= 0 {
		limit = c.Config.HistoryPageSize
	}

	switch args[0] {
	case "rooms":
		cmdRooms(ctx, c, *jsonFlag)
	case "history":
		need(args, 2, "history <room>")
		cmdHistory(ctx, c, args[1], *beforeFlag, limit, *jsonFlag)
	case "online":
		need(args, 2, "online <room>")
		cmdOnline(ctx, c, args[1], *jsonFlag)
	case "send":
		need(args, 3, "send <room> <text>")
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "), *jsonFlag)
	case "translate":
		need(args, 2, "translate <message-id> [lang]")
		cmdTranslate(ctx, c, args[1:], *jsonFlag)
	case "tail":
		need(args, 2, "tail <room>")
		cmdTail(ctx, c, args[1], *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: roomchat [--profile <name>] [--json] [-v] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  rooms                         List rooms")
	fmt.Fprintln(os.Stderr, "  history <room>                Show a history page (--limit, --before)")
	fmt.Fprintln(os.Stderr, "  online <room>                 Show who is online")
	fmt.Fprintln(os.Stderr, "  send <room> <text>            Send a message")
	fmt.Fprintln(os.Stderr, "  translate <message-id> [lang] Translate a message")
	fmt.Fprintln(os.Stderr, "  tail <room>                   Follow a room until interrupted")
}

func need(args []string, n int, usage string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "usage: roomchat %s\n", usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func cmdRooms(ctx context.Context, c *client.Client, jsonOut bool) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	rooms, err := c.API.Rooms(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(rest.RoomsResponse{Rooms: rooms})
		return
	}
	if len(rooms) == 0 {
		fmt.Println("No rooms found.")
		return
	}
	for _, r := range rooms {
		fmt.Printf("%-20s %s  %s\n", r.Slug, r.LastMessageAt.Local().Format("2006-01-02 15:04"), r.LastMessagePreview)
	}
}

func cmdHistory(ctx context.Context, c *client.Client, room string, before int64, limit int, jsonOut bool) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	page, err := c.API.History(ctx, room, before, limit)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(page)
		return
	}
	// Pages arrive newest first.
	for i := len(page.Messages) - 1; i >= 0; i-- {
		printMessage(page.Messages[i])
	}
	if page.HasMore && len(page.Messages) > 0 {
		fmt.Printf("-- more: roomchat history --before %d %s\n", page.Messages[len(page.Messages)-1].ID, room)
	}
}

func cmdOnline(ctx context.Context, c *client.Client, room string, jsonOut bool) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	users, err := c.API.OnlineUsers(ctx, room)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(rest.OnlineResponse{Users: users})
		return
	}
	fmt.Printf("%d online in #%s\n", len(users), room)
	for _, u := range users {
		fmt.Printf("  %-20s %s\n", u.Name, u.ID)
	}
}

func cmdTranslate(ctx context.Context, c *client.Client, args []string, jsonOut bool) {
	id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
	if err != nil || id <= 0 {
		fail(fmt.Errorf("invalid message id %q", args[0]))
	}
	lang := c.Config.Language
	if len(args) > 1 {
		lang = args[1]
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	text, err := c.API.Translate(ctx, rest.TranslateRequest{MessageID: id, TargetLanguage: lang})
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(rest.TranslateResponse{TranslatedText: text})
		return
	}
	fmt.Println(text)
}

// cmdSend sends through a live session and waits for the server echo, so
// the printed id is the stored one.
func cmdSend(ctx context.Context, c *client.Client, room, text string, jsonOut bool) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	s, err := c.Registry.Acquire(ctx, room)
	if err != nil {
		if s != nil {
			c.Registry.Release(room)
		}
		fail(err)
	}
	defer c.Registry.Release(room)

	events, unsubscribe := s.Subscribe(protocol.EventMessage, 16)
	defer unsubscribe()

	if err := s.SendMessage(text, nil, nil); err != nil {
		fail(err)
	}
	for {
		select {
		case evt := <-events:
			m, ok := evt.Payload.(protocol.Message)
			if !ok || m.Sender.ID != c.Config.UserID {
				continue
			}
			if jsonOut {
				outputJSON(m)
			} else {
				fmt.Printf("sent #%d\n", m.ID)
			}
			return
		case <-ctx.Done():
			fail(fmt.Errorf("no echo from the server: %w", ctx.Err()))
		}
	}
}

func cmdTail(ctx context.Context, c *client.Client, room string, jsonOut bool) {
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	s, err := c.Registry.Acquire(openCtx, room)
	cancel()
	if err != nil {
		if s != nil {
			c.Registry.Release(room)
		}
		fail(err)
	}
	defer c.Registry.Release(room)

	events, unsubscribe := s.Subscribe("", 256)
	defer unsubscribe()

	st := s.State()
	for _, m := range st.Messages {
		if jsonOut {
			outputLine(protocol.EventMessage, m)
		} else {
			printMessage(m)
		}
	}
	if !jsonOut {
		fmt.Printf("-- #%s %s, %d online --\n", room, st.Status, len(st.Online))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Done():
			return
		case evt := <-events:
			if jsonOut {
				outputLine(evt.Kind, evt.Payload)
			} else {
				printEvent(evt)
			}
			if sc, ok := evt.Payload.(status.StatusChange); ok && (sc.To == status.Disconnected || sc.To == status.Errored) {
				fmt.Fprintf(os.Stderr, "room %s: connection %s\n", room, strings.ToLower(string(sc.To)))
				os.Exit(1)
			}
		}
	}
}

func printMessage(m protocol.Message) {
	ts := m.Timestamp.Local().Format("15:04:05")
	fmt.Printf("[%s] #%d %s: %s", ts, m.ID, m.Sender.Name, m.Body)
	if m.Media != nil {
		fmt.Printf(" <%s %s>", m.Media.Kind, m.Media.URL)
	}
	if m.ReplyTo != nil {
		fmt.Printf(" (reply to #%d)", *m.ReplyTo)
	}
	fmt.Println()
	if m.TranslatedBody != "" {
		fmt.Printf("           » %s\n", m.TranslatedBody)
	}
}

func printEvent(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case protocol.Message:
		printMessage(p)
	case protocol.TypingEvent:
		if p.IsTyping {
			fmt.Printf("   %s is typing…\n", p.Username)
		}
	case protocol.UserStatusEvent:
		state := "left"
		if p.Online {
			state = "joined"
		}
		fmt.Printf("-- %s %s --\n", p.Username, state)
	case protocol.TranslationUpdate:
		fmt.Printf("   #%d (%s) » %s\n", p.MessageID, p.Language, p.TranslatedBody)
	case status.StatusChange:
		fmt.Printf("-- %s -> %s --\n", p.From, p.To)
	case transport.DisconnectEvent:
		fmt.Printf("-- disconnected (%d %s) --\n", p.Code, p.Reason)
	case error:
		fmt.Printf("-- error: %v --\n", p)
	}
}

func outputLine(kind string, payload any) {
	if err, ok := payload.(error); ok {
		payload = err.Error()
	}
	line := struct {
		Event   string `json:"event"`
		Payload any    `json:"payload"`
	}{kind, payload}
	if err := json.NewEncoder(os.Stdout).Encode(line); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

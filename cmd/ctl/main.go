// Package main provides the control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	apiconnect "github.com/osa030/musy/internal/api/connect"
	"github.com/osa030/musy/internal/app/playback"
)

var (
	app     = kingpin.New("musy-ctl", "musy playback control client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "Control token (or set CONTROL_TOKEN env)").Envar("CONTROL_TOKEN").String()
	rawJSON = app.Flag("json", "Print raw JSON responses").Bool()

	// play-at command
	playAtCmd   = app.Command("play-at", "Play the track at a queue index")
	playAtIndex = playAtCmd.Arg("index", "Queue index (0-based)").Required().Int()

	// seek command
	seekCmd = app.Command("seek", "Seek to a position")
	seekMs  = seekCmd.Arg("position-ms", "Position in milliseconds").Required().Int64()

	// search command
	searchCmd   = app.Command("search", "Search the catalog and replace the queue")
	searchQuery = searchCmd.Arg("query", "Search query or Spotify URL").Required().String()

	// invoke command
	invokeCmd    = app.Command("invoke", "Invoke a status action (prev, rewind, play_pause, next)")
	invokeAction = invokeCmd.Arg("action", "Action name").Required().String()

	// status command
	statusCmd = app.Command("status", "Get session status")

	// subscribe command
	subscribeCmd = app.Command("subscribe", "Subscribe to notifications")

	// Commands without arguments, keyed by their full command name
	simpleCmds = map[string]playback.CommandKind{
		app.Command("next", "Skip to the next track").FullCommand():               playback.CommandNext,
		app.Command("prev", "Go to the previous track").FullCommand():             playback.CommandPrev,
		app.Command("shuffle", "Play a random track").FullCommand():               playback.CommandShuffle,
		app.Command("toggle", "Toggle play and pause").Alias("tp").FullCommand():  playback.CommandTogglePlayPause,
		app.Command("pause", "Pause playback").FullCommand():                      playback.CommandPause,
		app.Command("resume", "Resume playback").FullCommand():                    playback.CommandResume,
		app.Command("rewind", "Rewind by the configured step").FullCommand():      playback.CommandRewind,
		app.Command("stop", "Stop playback and release the engine").FullCommand(): playback.CommandStop,
	}
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if *token == "" {
		fmt.Println("Error: control token is required (use --token or CONTROL_TOKEN env)")
		os.Exit(1)
	}

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	ctx := context.Background()

	switch command {
	case playAtCmd.FullCommand():
		check(client.PlayAt(ctx, *playAtIndex))
		fmt.Printf("Playing index %d\n", *playAtIndex)
	case seekCmd.FullCommand():
		check(client.Seek(ctx, *seekMs))
		fmt.Printf("Seeked to %s\n", formatMs(float64(*seekMs)))
	case searchCmd.FullCommand():
		search(ctx, client, *searchQuery)
	case invokeCmd.FullCommand():
		check(client.Invoke(ctx, *invokeAction))
		fmt.Printf("Invoked %s\n", *invokeAction)
	case statusCmd.FullCommand():
		status(ctx, client)
	case subscribeCmd.FullCommand():
		subscribe(ctx, client)
	default:
		kind, ok := simpleCmds[command]
		if !ok {
			fmt.Printf("Error: unknown command %s\n", command)
			os.Exit(1)
		}
		check(client.Command(ctx, kind))
		fmt.Printf("Sent %s\n", kind)
	}
}

func check(err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func search(ctx context.Context, client *apiconnect.Client, query string) {
	resp, err := client.Search(ctx, query)
	check(err)
	if *rawJSON {
		printJSON(resp)
		return
	}

	fields := resp.GetFields()
	fmt.Printf("\nQuery: %s (provider: %s)\n", fields["query"].GetStringValue(), fields["provider"].GetStringValue())
	for i, v := range fields["tracks"].GetListValue().GetValues() {
		t := v.GetStructValue().GetFields()
		fmt.Printf("  %3d. %s - %s [%s]\n", i,
			t["artist"].GetStringValue(), t["title"].GetStringValue(), formatMs(t["duration_ms"].GetNumberValue()))
	}
	if rejected := fields["rejected"].GetStructValue().GetFields(); len(rejected) > 0 {
		fmt.Println("\nRejected:")
		for code, n := range rejected {
			fmt.Printf("  %s: %d\n", code, int(n.GetNumberValue()))
		}
	}
	fmt.Println()
}

func status(ctx context.Context, client *apiconnect.Client) {
	resp, err := client.Status(ctx)
	check(err)
	if *rawJSON {
		printJSON(resp)
		return
	}

	fields := resp.GetFields()
	fmt.Println("\n=== CURRENT SESSION STATUS ===")
	fmt.Printf("Session ID: %s\n", fields["session_id"].GetStringValue())
	fmt.Printf("State: %s\n", formatState(fields["state"].GetStringValue()))
	fmt.Printf("Queue Size: %d\n", len(fields["queue"].GetListValue().GetValues()))
	fmt.Printf("Polling: %v\n", fields["polling"].GetBoolValue())

	if t := fields["track"].GetStructValue(); t != nil {
		tf := t.GetFields()
		fmt.Println("\nCurrent Track:")
		fmt.Printf("  Index: %d\n", int(fields["index"].GetNumberValue()))
		fmt.Printf("  Title: %s\n", tf["title"].GetStringValue())
		fmt.Printf("  Artist: %s\n", tf["artist"].GetStringValue())
		fmt.Printf("  Source: %s\n", tf["source"].GetStringValue())
		fmt.Printf("  Position: %s / %s\n",
			formatMs(fields["position_ms"].GetNumberValue()), formatMs(fields["duration_ms"].GetNumberValue()))
	} else {
		fmt.Println("\nNo track selected")
	}

	printActions(fields["status"].GetStructValue())
	fmt.Println()
}

func subscribe(ctx context.Context, client *apiconnect.Client) {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	err := client.Subscribe(ctx, func(msg *structpb.Struct) error {
		if *rawJSON {
			printJSON(msg)
			return nil
		}
		printNotification(msg)
		return nil
	})
	if err != nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\nUnsubscribed")
}

func printNotification(msg *structpb.Struct) {
	fields := msg.GetFields()
	st := fields["status"].GetStructValue().GetFields()

	switch fields["kind"].GetStringValue() {
	case "initial_state":
		fmt.Println("\n=== INITIAL STATE ===")
	case "event":
		ev := fields["event"].GetStructValue().GetFields()
		evType := ev["type"].GetStringValue()
		// Position updates that did not rebuild the status print on one line
		if evType == "position_updated" && !fields["rebuilt"].GetBoolValue() {
			fmt.Printf("\r[%d] %s / %s", int64(fields["sequence_no"].GetNumberValue()),
				formatMs(st["position_ms"].GetNumberValue()), formatMs(st["duration_ms"].GetNumberValue()))
			return
		}
		fmt.Printf("\n[Sequence: %d] === %s ===\n", int64(fields["sequence_no"].GetNumberValue()), evType)
		if evType == "playback_error" {
			fmt.Printf("  Error: %s (%d)\n", ev["code_name"].GetStringValue(), int(ev["code"].GetNumberValue()))
		}
	default:
		fmt.Printf("\n=== UNKNOWN MESSAGE (%s) ===\n", fields["kind"].GetStringValue())
	}

	fmt.Printf("  State: %s\n", formatState(st["state"].GetStringValue()))
	if title := st["title"].GetStringValue(); title != "" {
		fmt.Printf("  Track: %s - %s\n", st["artist"].GetStringValue(), title)
	}
	fmt.Printf("  Position: %s / %s\n", formatMs(st["position_ms"].GetNumberValue()), formatMs(st["duration_ms"].GetNumberValue()))
	fmt.Printf("  Queue Length: %d\n", int(st["queue_length"].GetNumberValue()))
	printActions(fields["status"].GetStructValue())
}

func printActions(st *structpb.Struct) {
	if st == nil {
		return
	}
	actions := st.GetFields()["actions"].GetListValue().GetValues()
	if len(actions) == 0 {
		return
	}
	fmt.Print("  Actions:")
	for _, a := range actions {
		af := a.GetStructValue().GetFields()
		fmt.Printf(" [%s: %s]", af["name"].GetStringValue(), af["label"].GetStringValue())
	}
	fmt.Println()
}

func printJSON(msg *structpb.Struct) {
	b, err := protojson.MarshalOptions{Multiline: true}.Marshal(msg)
	check(err)
	fmt.Println(string(b))
}

func formatState(state string) string {
	switch state {
	case "idle":
		return "⏹  Idle"
	case "loading":
		return "⏳ Loading"
	case "playing":
		return "▶️  Playing"
	case "paused":
		return "⏸  Paused"
	case "error":
		return "⚠️  Error"
	default:
		return "❓ Unknown"
	}
}

func formatMs(ms float64) string {
	total := int64(ms) / 1000
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

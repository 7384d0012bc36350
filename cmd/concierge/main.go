package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zerohouse/eventhost/internal/avatar"
	"github.com/zerohouse/eventhost/internal/calendar"
	"github.com/zerohouse/eventhost/internal/room"
)

type options struct {
	relayURL  string
	authToken string
	avatarID  string
	eventID   string
	title     string
	audioPath string
	offline   bool
	timeout   time.Duration
}

type eventInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// printSurface logs inbound avatar tracks; the terminal has no video element.
type printSurface struct{}

func (printSurface) AttachTrack(t room.RemoteTrack) {
	fmt.Printf("[room] %s track attached (sid %s)\n", t.Kind, t.SID)
}

func main() {
	opts := parseFlags()

	ev := fetchEvent(opts)
	title := opts.title
	if title == "" && ev != nil {
		title = ev.Title
	}
	if title == "" {
		title = "the event"
	}

	relay := avatar.NewHTTPRelay(opts.relayURL, opts.authToken, opts.timeout)

	var dialer room.Dialer
	var mic room.Microphone
	if opts.offline {
		dialer = room.NewMockDialer()
		mic = room.NewMockMicrophone()
	} else {
		dialer = room.NewWSDialer()
		if opts.audioPath != "" {
			mic = &room.SourceMicrophone{
				Open: func(_ context.Context, _ room.CaptureOptions) (room.AudioSource, error) {
					return os.Open(opts.audioPath)
				},
			}
		} else {
			mic = room.NewMockMicrophone()
		}
	}

	ctrl := avatar.NewController(avatar.Config{
		AvatarID:       opts.avatarID,
		RelayBaseURL:   opts.relayURL,
		RelayAuthToken: opts.authToken,
		EventTitle:     title,
	}, relay, dialer, mic)
	ctrl.SetSurface(printSurface{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nstopping session")
		_ = ctrl.Stop(context.Background())
		cancel()
		os.Exit(0)
	}()

	fmt.Printf("concierge for %q, relay %s\n", title, opts.relayURL)
	fmt.Println("commands: /start /stop /mic /state /transcript /calendar /quit, anything else is sent to the avatar")

	if err := ctrl.Start(ctx); err != nil {
		fmt.Printf("start failed: %v\n", err)
	} else {
		fmt.Printf("session %s active\n", ctrl.SessionID())
		printLatest(ctrl)
	}

	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			_ = ctrl.Stop(ctx)
			return
		case line == "/start":
			if err := ctrl.Start(ctx); err != nil {
				fmt.Printf("start failed: %v\n", err)
				continue
			}
			fmt.Printf("session %s active\n", ctrl.SessionID())
			printLatest(ctrl)
		case line == "/stop":
			if err := ctrl.Stop(ctx); err != nil {
				fmt.Printf("stop failed: %v\n", err)
			}
			fmt.Println("session stopped")
		case line == "/mic":
			if err := ctrl.ToggleMic(ctx); err != nil {
				fmt.Printf("mic toggle failed: %v\n", err)
				continue
			}
			if ctrl.MicPublished() {
				fmt.Println("mic on")
			} else {
				fmt.Println("mic off")
			}
			printLatest(ctrl)
		case line == "/state":
			fmt.Printf("state=%s mic=%v session=%s\n", ctrl.State(), ctrl.MicPublished(), ctrl.SessionID())
			if msg := ctrl.LastError(); msg != "" {
				fmt.Printf("last error: %s\n", msg)
			}
		case line == "/transcript":
			for _, e := range ctrl.Transcript() {
				fmt.Printf("[%s] %s: %s\n", e.Timestamp.Format("15:04:05"), e.Role, e.Text)
			}
		case line == "/calendar":
			printCalendarLink(ev, title)
		default:
			if err := ctrl.SendTask(ctx, line); err != nil {
				fmt.Printf("send failed: %v\n", err)
				continue
			}
			printLatest(ctrl)
		}
	}

	_ = ctrl.Stop(context.Background())
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.relayURL, "relay", "http://localhost:8080", "relay server base URL")
	flag.StringVar(&opts.authToken, "token", "", "relay bearer token")
	flag.StringVar(&opts.avatarID, "avatar", "", "avatar id to provision")
	flag.StringVar(&opts.eventID, "event", "", "event id to fetch from the relay")
	flag.StringVar(&opts.title, "title", "", "event title override")
	flag.StringVar(&opts.audioPath, "audio", "", "audio source path published as the microphone track")
	flag.BoolVar(&opts.offline, "offline", false, "use a mock room instead of dialing the media server")
	flag.DurationVar(&opts.timeout, "timeout", 30*time.Second, "relay request timeout")
	flag.Parse()
	return opts
}

func fetchEvent(opts options) *eventInfo {
	if opts.eventID == "" {
		return nil
	}
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(opts.relayURL, "/")+"/v1/events/"+opts.eventID, nil)
	if err != nil {
		return nil
	}
	res, err := (&http.Client{Timeout: opts.timeout}).Do(req)
	if err != nil {
		fmt.Printf("event lookup failed: %v\n", err)
		return nil
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		fmt.Printf("event lookup status %d\n", res.StatusCode)
		return nil
	}
	var ev eventInfo
	if err := json.NewDecoder(res.Body).Decode(&ev); err != nil {
		return nil
	}
	return &ev
}

func printCalendarLink(ev *eventInfo, title string) {
	entry := calendar.Entry{Title: title}
	if ev != nil {
		entry.Description = ev.Description
		entry.Location = ev.Location
		if start, err := time.Parse("January 2, 2006 3:04 PM", ev.Date+" "+ev.Time); err == nil {
			entry.Start = start
			entry.End = start.Add(3 * time.Hour)
		}
	}
	if entry.Start.IsZero() {
		entry.Start = time.Now().Add(24 * time.Hour).Truncate(time.Hour)
		entry.End = entry.Start.Add(3 * time.Hour)
	}
	fmt.Println(calendar.GoogleLink(entry))
}

func printLatest(c *avatar.Controller) {
	entries := c.Transcript()
	if len(entries) == 0 {
		return
	}
	e := entries[len(entries)-1]
	fmt.Printf("%s: %s\n", e.Role, e.Text)
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"supportchat/api"
	"supportchat/chat"
	"supportchat/config"
	"supportchat/models"
	"supportchat/notify"
	"supportchat/realtime"
	"supportchat/storage"
	"supportchat/ui"
)

func main() {
	cfg, cfgPath, err := config.LoadOrCreate()
	if err != nil {
		log.Fatalf("startup failed while loading config: %v", err)
	}

	fmt.Printf("Profile ID:      %s\n", cfg.ProfileID)
	fmt.Printf("Display Name:    %s\n", cfg.DisplayName)
	fmt.Printf("Role:            %s\n", cfg.Role)
	fmt.Printf("API Base URL:    %s\n", cfg.APIBaseURL)
	fmt.Printf("Socket URL:      %s\n", cfg.SocketURL)
	fmt.Printf("Config File:     %s\n", cfgPath)
	dataDir := filepath.Dir(cfgPath)

	store, dbPath, err := storage.Open(dataDir)
	if err != nil {
		log.Fatalf("startup failed while opening database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("database close error: %v", err)
		}
	}()
	fmt.Printf("Database File:   %s\n", dbPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := chat.Deps{
		API:      api.NewClient(cfg.APIBaseURL, cfg.AuthToken, &http.Client{Timeout: 15 * time.Second}),
		Cache:    store,
		Notifier: notify.LogNotifier{},
		Unseen:   &notify.Flag{},
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := realtime.Dial(dialCtx, cfg.SocketURL)
	cancel()
	if err != nil {
		log.Printf("socket dial failed, running history-only: %v", err)
	} else {
		defer conn.Close()
		deps.Transport = conn
		fmt.Println("Socket:          connected")
	}

	session, err := chat.NewSession(cfg, deps)
	if err != nil {
		log.Fatalf("startup failed while opening session: %v", err)
	}
	defer session.Close()

	deps.Unseen.Subscribe(func(unseen bool) {
		if unseen {
			fmt.Println("* unread messages")
		}
	})

	switch s := session.(type) {
	case *chat.AdminSession:
		runAdmin(ctx, s)
	case *chat.UserSession:
		runUser(ctx, cfg.ProfileID, s)
	}
}

// runUser drives the single-conversation view: every input line is sent as
// the configured identity, the transcript re-renders on every change.
func runUser(ctx context.Context, profileID string, session *chat.UserSession) {
	transcript := ui.Transcript{Self: profileID}
	session.OnUpdate(func(messages []models.Message) {
		fmt.Println(transcript.Render(messages))
	})

	if err := session.Start(ctx); err != nil {
		log.Fatalf("session start failed: %v", err)
	}
	// The transcript is always on screen in the terminal rendition.
	session.SetActive(true)
	fmt.Println("Type a message and press Enter. Ctrl+C to quit.")

	for line := range inputLines(ctx) {
		if err := session.Send(ctx, line); err != nil {
			log.Printf("send failed: %v", err)
		}
	}
}

// runAdmin drives the multi-conversation screen. Plain lines go to the open
// conversation; /open selects a roster entry, /roster redraws the list.
func runAdmin(ctx context.Context, session *chat.AdminSession) {
	transcript := ui.Transcript{Self: models.AdminSender}
	roster := ui.Roster{}

	session.OnRoster(func(entries []chat.RosterEntry) {
		roster.Active = session.ActiveUser()
		fmt.Println(roster.Render(entries, session.Presence()))
	})
	session.OnUpdate(func(messages []models.Message) {
		fmt.Println(transcript.Render(messages))
	})

	if err := session.Start(ctx); err != nil {
		log.Fatalf("session start failed: %v", err)
	}
	fmt.Println("Commands: /open <user-id>, /roster. Plain lines send to the open conversation.")

	for line := range inputLines(ctx) {
		switch {
		case strings.HasPrefix(line, "/open "):
			userID := strings.TrimSpace(strings.TrimPrefix(line, "/open "))
			if err := session.Select(ctx, userID); err != nil {
				log.Printf("open failed: %v", err)
			}
		case line == "/roster":
			roster.Active = session.ActiveUser()
			fmt.Println(roster.Render(session.Roster(), session.Presence()))
		default:
			if err := session.Send(ctx, line); err != nil {
				log.Printf("send failed: %v", err)
			}
		}
	}
}

// inputLines feeds non-empty stdin lines until stdin closes or the context
// is cancelled.
func inputLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

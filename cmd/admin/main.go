package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"supportdesk/backend/internal/api/handler"
	"supportdesk/backend/internal/availability"
	"supportdesk/backend/internal/chat"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// cliAdminID is the actor recorded for read-only CLI access.
const cliAdminID = "cli"

const usage = `Usage: admin <command> [args]

Commands:
  sweep                    close sessions idle past the user timeout (cron-friendly)
  list [status]            list sessions, optionally pending|active|closed
  claim <session_id> <admin_id>
  close <session_id> <admin_id>
  transcript <session_id>  print the log in the legacy single-string message format
  token <user_id> <role>   issue a bearer token (role: applicant|admin)`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("SUPPORTDESK_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	command, args := os.Args[1], os.Args[2:]

	// token needs no database.
	if command == "token" {
		if len(args) != 2 {
			fmt.Println("Usage: admin token <user_id> <role>")
			os.Exit(1)
		}
		token, err := handler.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AnonTokenTTL).IssueUser(args[0], args[1])
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
		return
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.ConnString()), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	svc := chat.NewService(storage.NewStorageService(db),
		availability.NewPolicy(cfg.EffectiveOverride()),
		chat.WithLogger(logger),
		chat.WithUserTimeout(cfg.Chat.UserTimeout))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case "sweep":
		result, err := svc.Reap(ctx)
		if err != nil {
			log.Fatalf("Error running sweep: %v", err)
		}
		printJSON(result)
		if n := svc.Metrics().AdvisoryAppendFailures.Load(); n > 0 {
			fmt.Fprintf(os.Stderr, "%d closure notices could not be written\n", n)
		}
	case "list":
		var status models.SessionStatus
		if len(args) > 0 {
			status = models.SessionStatus(args[0])
		}
		sessions, err := svc.ListSessions(ctx, status, 0)
		if err != nil {
			log.Fatalf("Error listing sessions: %v", err)
		}
		for _, s := range sessions {
			fmt.Printf("%s\t%s\t%s\t%s\n", s.ID, s.Status, s.CreatedAt.Format(time.RFC3339), s.Requester().Key())
		}
	case "claim":
		if len(args) != 2 {
			fmt.Println("Usage: admin claim <session_id> <admin_id>")
			os.Exit(1)
		}
		session, err := svc.Claim(ctx, args[0], args[1])
		if err != nil {
			log.Fatalf("Error claiming session: %v", err)
		}
		fmt.Printf("Session %s claimed by %s.\n", session.ID, args[1])
	case "close":
		if len(args) != 2 {
			fmt.Println("Usage: admin close <session_id> <admin_id>")
			os.Exit(1)
		}
		result, err := svc.Close(ctx, args[0], args[1])
		if err != nil {
			log.Fatalf("Error closing session: %v", err)
		}
		if result.Closed {
			fmt.Printf("Session %s has been closed.\n", args[0])
		} else {
			fmt.Printf("Session %s was already closed.\n", args[0])
		}
	case "transcript":
		if len(args) != 1 {
			fmt.Println("Usage: admin transcript <session_id>")
			os.Exit(1)
		}
		if err := printTranscript(ctx, svc, args[0]); err != nil {
			log.Fatalf("Error exporting transcript: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		fmt.Println(usage)
		os.Exit(1)
	}
}

// printTranscript pages through the session log, one tab-separated line per
// message, with bodies re-encoded the way pre-kind rows stored them.
func printTranscript(ctx context.Context, svc *chat.Service, sessionID string) error {
	var after uint
	for {
		page, err := svc.History(ctx, sessionID, chat.AdminActor(cliAdminID), after, 0)
		if err != nil {
			return err
		}
		if len(page.Messages) == 0 {
			return nil
		}
		for i := range page.Messages {
			m := &page.Messages[i]
			fmt.Printf("%s\t%s\t%s\n", m.CreatedAt.Format(time.RFC3339), m.Sender, models.LegacyBody(m.Body()))
			after = m.ID
		}
	}
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("Error encoding output: %v", err)
	}
}

// cmd/taskwatch/main.go
//
// taskwatch is the composition root for the sync core: it wires config,
// database, identity provider, the task store and the state container,
// attaches the live feed and prints the visible task list on every
// remote change. Useful for watching another device's edits arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"tasksync/internal/config"
	"tasksync/internal/database"
	"tasksync/internal/models"
	"tasksync/internal/state"
	"tasksync/internal/store"
	"tasksync/pkg/auth"
)

func main() {
	addTitle := flag.String("add", "", "create a task with this title before watching")
	addDesc := flag.String("desc", "created from taskwatch", "description for -add")
	flag.Parse()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Account mode when a token is configured, guest mode otherwise.
	var provider auth.Provider
	if cfg.Auth.Token != "" {
		provider = auth.NewTokenProvider(auth.NewTokenVerifier(cfg.Auth.JWTSecret), cfg.Auth.Token)
		log.Println("Using token identity (account mode)")
	} else {
		provider = auth.NewStatic(cfg.Auth.GuestUserID)
		log.Printf("Using guest identity %q (local mode)", cfg.Auth.GuestUserID)
	}

	taskStore := store.NewSQLTaskStore(db, provider)
	defer taskStore.Close()

	if cfg.Database.Driver == "postgres" {
		if err := taskStore.ListenRemote(cfg.Database.DSN()); err != nil {
			log.Fatalf("Failed to attach remote listener: %v", err)
		}
		log.Println("Listening for remote changes")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stateStore := state.NewStore(taskStore)
	stop, err := stateStore.StartSync(ctx, func() {
		printTasks(stateStore.Visible())
	})
	if err != nil {
		log.Fatalf("Failed to start sync: %v", err)
	}
	defer stop()

	if *addTitle != "" {
		created, err := stateStore.Create(ctx, models.TaskInput{
			Title:       *addTitle,
			Description: *addDesc,
		})
		if err != nil {
			log.Fatalf("Failed to create task: %v", err)
		}
		log.Printf("Created task %s", created.ID)
	}

	log.Println("Watching tasks (Ctrl+C to stop)")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down")
}

func printTasks(tasks []models.Task) {
	fmt.Printf("--- %d task(s) ---\n", len(tasks))
	for _, t := range tasks {
		mark := " "
		if t.IsCompleted {
			mark = "x"
		}
		fmt.Printf("[%s] %-8s %s\n", mark, t.Priority, t.Title)
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"birthday-rsvp/internal/config"
	"birthday-rsvp/internal/logging"
	"birthday-rsvp/internal/models"
	"birthday-rsvp/internal/storage"
)

func main() {
	fmt.Println("🎂 Birthday RSVP Admin")
	fmt.Println("======================")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if !cfg.DatabaseConfigured() {
		fmt.Println("No database URL configured (POSTGRES_PRISMA_URL, POSTGRES_URL, POSTGRES_URL_NON_POOLING or DATABASE_URL).")
		os.Exit(1)
	}

	log, err := logging.New(cfg.LogLevel, true)
	if err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg.DatabaseDriver, cfg.DSN(), log)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	runCLI(context.Background(), os.Stdin, os.Stdout, store)
}

func runCLI(ctx context.Context, in io.Reader, out io.Writer, store *storage.Storage) {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprintln(out, "\nCommands:")
		fmt.Fprintln(out, "  1. View all RSVPs")
		fmt.Fprintln(out, "  2. View counts")
		fmt.Fprintln(out, "  3. Migrate schema")
		fmt.Fprintln(out, "  4. Exit")
		fmt.Fprint(out, "\nEnter command (1-4): ")

		if !scanner.Scan() {
			return
		}

		switch strings.TrimSpace(scanner.Text()) {
		case "1":
			viewAllRSVPs(ctx, out, store)
		case "2":
			viewCounts(ctx, out, store)
		case "3":
			if err := store.Migrate(ctx); err != nil {
				fmt.Fprintf(out, "❌ %v\n", err)
			} else {
				fmt.Fprintln(out, "✅ Schema is up to date")
			}
		case "4":
			fmt.Fprintln(out, "Exiting...")
			return
		default:
			fmt.Fprintln(out, "Invalid command. Please try again.")
		}
	}
}

func viewAllRSVPs(ctx context.Context, out io.Writer, store *storage.Storage) {
	rsvps, err := store.ListRSVPs(ctx)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}
	if len(rsvps) == 0 {
		fmt.Fprintln(out, "\nNo RSVPs yet.")
		return
	}

	fmt.Fprintf(out, "\n📋 All RSVPs (%d total):\n", len(rsvps))
	fmt.Fprintln(out, strings.Repeat("-", 60))
	for _, rsvp := range rsvps {
		printRSVP(out, rsvp)
		fmt.Fprintln(out, strings.Repeat("-", 60))
	}
}

func printRSVP(out io.Writer, rsvp models.RSVP) {
	fmt.Fprintf(out, "Name: %s\n", rsvp.Name)
	if rsvp.Phone != nil {
		fmt.Fprintf(out, "Phone: %s\n", *rsvp.Phone)
	}
	fmt.Fprintf(out, "Confirmed: %s\n", rsvp.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	if len(rsvp.Guests) > 0 {
		fmt.Fprintf(out, "Guests (%d):\n", len(rsvp.Guests))
		for _, g := range rsvp.Guests {
			fmt.Fprintf(out, "  - %s\n", g.Name)
		}
	}
}

func viewCounts(ctx context.Context, out io.Writer, store *storage.Storage) {
	stats, err := store.Stats(ctx)
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(out, "\nRSVPs: %d\nGuests: %d\nTotal attendees: %d\n", stats.RSVPs, stats.GuestsCount, stats.RSVPs+stats.GuestsCount)
}

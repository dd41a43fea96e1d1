package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"time"

	"jordanella.com/rmac/internal/database"
)

func main() {
	dbPath := flag.String("db", "rmac.db", "Path to database file")
	numSessions := flag.Int("sessions", 10, "Number of recent sessions to list")
	numErrors := flag.Int("errors", 0, "Number of recent errors to list")
	pruneDays := flag.Int("prune-errors", 0, "Delete errors older than this many days")
	vacuum := flag.Bool("vacuum", false, "Compact the database file")
	flag.Parse()

	db, err := database.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	applied, err := db.RunMigrations()
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	if applied > 0 {
		log.Printf("Applied %d migrations", applied)
	}

	stats, err := db.GetStats()
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	printStats(*dbPath, stats)

	if *numSessions > 0 {
		listSessions(db, *numSessions)
	}
	if *numErrors > 0 {
		listErrors(db, *numErrors)
	}

	if *pruneDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -*pruneDays)
		n, err := db.DeleteOldErrors(cutoff)
		if err != nil {
			log.Fatalf("Failed to prune errors: %v", err)
		}
		log.Printf("Deleted %d errors older than %s", n, cutoff.Format("2006-01-02"))
	}

	if *vacuum {
		if err := db.Vacuum(); err != nil {
			log.Fatalf("Failed to vacuum: %v", err)
		}
		log.Println("Database compacted")
	}
}

func printStats(path string, stats map[string]int64) {
	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("%s\n", path)
	for _, k := range keys {
		fmt.Printf("  %-12s %d\n", k, stats[k])
	}
}

func listSessions(db *database.DB, limit int) {
	sessions, err := db.RecentSessions(limit)
	if err != nil {
		log.Printf("Failed to list sessions: %v", err)
		return
	}
	fmt.Println()
	fmt.Println("Recent sessions:")
	for _, s := range sessions {
		counts, err := db.CountDetections(s.ID)
		if err != nil {
			log.Printf("Failed to count detections for %s: %v", s.ID, err)
		}
		fmt.Printf("  %s  %-11s %-9s events=%-6d %s %v\n",
			s.StartedAt.Format("2006-01-02 15:04:05"), s.Mode, s.Status, s.EventCount,
			s.Duration().Round(time.Second), counts)
		if s.ErrorMessage.Valid {
			fmt.Printf("      error: %s\n", s.ErrorMessage.String)
		}
	}
}

func listErrors(db *database.DB, limit int) {
	errs, err := db.GetRecentErrors(limit)
	if err != nil {
		log.Printf("Failed to list errors: %v", err)
		return
	}
	fmt.Println()
	fmt.Println("Recent errors:")
	for _, e := range errs {
		fmt.Printf("  %s  [%s] %s\n", e.OccurredAt.Format("2006-01-02 15:04:05"), e.Source, e.ErrorMessage)
	}
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"umaka/process/rescan"
)

func main() {
	_ = godotenv.Load()
	dry := flag.Bool("dry-run", true, "dry-run: don't write to DB")
	limit := flag.Int("limit", 0, "max captures to rescan (0 = all)")
	id := flag.Uint("id", 0, "rescan a single capture by id")
	flag.Parse()

	if os.Getenv("DB_DSN") == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export and retry")
		os.Exit(2)
	}

	if err := rescan.Run(*dry, *limit, *id); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"umaka/process/report"
)

func main() {
	_ = godotenv.Load()
	username := flag.String("username", "admin", "username to report for")
	from := flag.String("from", "", "range start (YYYY-MM-DD, default 30 days ago)")
	to := flag.String("to", "", "range end inclusive (YYYY-MM-DD, default today)")
	list := flag.Bool("list", false, "list matching rows")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}

	report.RunReport(*username, *from, *to, *list)
}

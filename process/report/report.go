package report

import (
	"database/sql"
	"fmt"
	"os"
	"sort"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

func openDBFromEnv() *sql.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal().Msg("DB_DSN not set in env")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Msgf("open db: %v", err)
	}
	return db
}

// rankLadder is the print order for the histogram, best first.
var rankLadder = []string{"SS", "S", "A+", "A", "B", "C"}

type reportRow struct {
	id          int64
	fileName    string
	total       int
	rank        string
	distance    string
	strategy    string
	needsReview bool
	scannedAt   time.Time
}

// RunReport prints a date-bounded summary of a user's stat sheets: count,
// best total, mean/stddev/quartiles over scored sheets, and a rank
// histogram. from/to are YYYY-MM-DD; an empty range defaults to the last
// 30 days. Sheets still waiting for review are counted but excluded from
// the statistics. If list is true the matching rows are printed too.
func RunReport(username, from, to string, list bool) {
	db := openDBFromEnv()
	defer db.Close()

	var userID int64
	if err := db.QueryRow(`SELECT id FROM users WHERE username = $1`, username).Scan(&userID); err != nil {
		log.Fatal().Msgf("user not found: %v", err)
	}

	start, end := resolveRange(from, to)

	rows, err := db.Query(`
		SELECT id, file_name, total_score, rank, distance, strategy, needs_review, scanned_at
		FROM stat_sheets
		WHERE user_id = $1 AND scanned_at >= $2 AND scanned_at < $3
		ORDER BY id`, userID, start, end)
	if err != nil {
		log.Fatal().Msgf("query failed: %v", err)
	}
	defer rows.Close()

	var all []reportRow
	for rows.Next() {
		var r reportRow
		if err := rows.Scan(&r.id, &r.fileName, &r.total, &r.rank, &r.distance, &r.strategy, &r.needsReview, &r.scannedAt); err != nil {
			log.Fatal().Msgf("scan failed: %v", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		log.Fatal().Msgf("rows err: %v", err)
	}

	var totals []float64
	ranks := map[string]int{}
	pending := 0
	for _, r := range all {
		if r.needsReview {
			pending++
			continue
		}
		totals = append(totals, float64(r.total))
		ranks[r.rank]++
	}

	fmt.Printf("Stat report for user=%s range=%s..%s (UTC):\n", username, start.Format("2006-01-02"), end.Format("2006-01-02"))
	fmt.Printf("  sheets=%d scored=%d pending_review=%d\n", len(all), len(totals), pending)

	if len(totals) > 0 {
		sort.Float64s(totals)
		best := totals[len(totals)-1]
		mean := stat.Mean(totals, nil)
		sd := 0.0
		if len(totals) > 1 {
			sd = stat.StdDev(totals, nil)
		}
		p25 := stat.Quantile(0.25, stat.Empirical, totals, nil)
		p50 := stat.Quantile(0.5, stat.Empirical, totals, nil)
		p75 := stat.Quantile(0.75, stat.Empirical, totals, nil)
		fmt.Printf("  best=%.0f mean=%.1f stddev=%.1f\n", best, mean, sd)
		fmt.Printf("  quartiles p25=%.0f p50=%.0f p75=%.0f\n", p25, p50, p75)
		fmt.Printf("  ranks:")
		for _, rk := range rankLadder {
			fmt.Printf(" %s=%d", rk, ranks[rk])
		}
		fmt.Println()
	}

	if list {
		for _, r := range all {
			fmt.Printf("%d|%s|%d|%s|%s|%s|review=%v|%s\n",
				r.id, r.fileName, r.total, r.rank, r.distance, r.strategy, r.needsReview, r.scannedAt.Format(time.RFC3339))
		}
	}
}

func resolveRange(from, to string) (time.Time, time.Time) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -30)
	if from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			log.Fatal().Msgf("invalid from date, expected YYYY-MM-DD: %v", err)
		}
		start = t
	}
	end := now
	if to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			log.Fatal().Msgf("invalid to date, expected YYYY-MM-DD: %v", err)
		}
		end = t.AddDate(0, 0, 1) // inclusive day
	}
	return start, end
}

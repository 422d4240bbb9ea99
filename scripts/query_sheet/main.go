package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"umaka/pkg/rating"
)

type User struct {
	ID       uint
	Username string
}

type Sheet struct {
	ID             uint
	UserID         uint
	FileName       string
	SpeedCurrent   int
	SpeedMax       int
	StaminaCurrent int
	StaminaMax     int
	PowerCurrent   int
	PowerMax       int
	GutsCurrent    int
	GutsMax        int
	WisdomCurrent  int
	WisdomMax      int
	Distance       string
	Strategy       string
	TotalScore     int
	Rank           string
	NeedsReview    bool
}

// TableName overrides GORM's default pluralization to match the StatSheet model's table.
func (Sheet) TableName() string { return "stat_sheets" }

func main() {
	username := flag.String("username", "", "username")
	file := flag.String("file", "", "file name")
	wait := flag.Int("wait", 15, "seconds to wait/poll")
	flag.Parse()
	if *username == "" || *file == "" {
		log.Fatal("--username and --file are required")
	}
	dsn := os.Getenv("DB_DSN")
	if strings.TrimSpace(dsn) == "" {
		log.Fatal("DB_DSN not set in env")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	var u User
	if err := db.Where("username = ?", *username).First(&u).Error; err != nil {
		log.Fatalf("user not found: %v", err)
	}
	deadline := time.Now().Add(time.Duration(*wait) * time.Second)
	for {
		var s Sheet
		err := db.Where("user_id = ? AND file_name = ?", u.ID, *file).Order("id desc").First(&s).Error
		if err == nil {
			fmt.Printf("FOUND sheet id=%d total=%d rank=%s review=%v for file=%s\n", s.ID, s.TotalScore, s.Rank, s.NeedsReview, s.FileName)
			printEvaluation(s)
			return
		}
		if time.Now().After(deadline) {
			log.Fatalf("not found after %ds waiting", *wait)
		}
		time.Sleep(2 * time.Second)
	}
}

func printEvaluation(s Sheet) {
	d, err := rating.ParseDistance(s.Distance)
	if err != nil {
		d = rating.Middle
	}
	st, err := rating.ParseStrategy(s.Strategy)
	if err != nil {
		st = rating.PaceChaser
	}
	block := rating.FromValues([10]int{
		s.SpeedCurrent, s.SpeedMax,
		s.StaminaCurrent, s.StaminaMax,
		s.PowerCurrent, s.PowerMax,
		s.GutsCurrent, s.GutsMax,
		s.WisdomCurrent, s.WisdomMax,
	})
	ev := rating.Evaluate(block, d, st)
	for _, name := range rating.StatNames {
		fmt.Printf("  %s=%d\n", name, ev.Scores[name])
	}
	fmt.Printf("  %s/%s total=%d rank=%s\n", d, st, ev.Total, ev.Rank)
}

package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"umaka/pkg/ocr"
	"umaka/pkg/rating"
)

func main() {
	f := flag.String("file", "", "image file to scan")
	langs := flag.String("langs", "eng", "comma separated tesseract languages")
	dist := flag.String("distance", "middle", "distance for the trial evaluation")
	strat := flag.String("strategy", "pace-chaser", "strategy for the trial evaluation")
	flag.Parse()
	if *f == "" {
		log.Fatal().Msg("-file required")
	}

	block, text, err := ocr.ScanImage(*f, strings.Split(*langs, ",")...)
	fmt.Printf("raw text: %q\n", text)
	fmt.Printf("digit runs: %v\n", ocr.StatValues(text))
	if err != nil {
		fmt.Printf("scan error: %v\n", err)
		return
	}
	fmt.Printf("currents=%v maxes=%v\n", block.Currents(), block.Maxes())

	d, err := rating.ParseDistance(*dist)
	if err != nil {
		log.Fatal().Msgf("%v", err)
	}
	s, err := rating.ParseStrategy(*strat)
	if err != nil {
		log.Fatal().Msgf("%v", err)
	}
	ev := rating.Evaluate(block, d, s)
	fmt.Printf("scores=%v total=%d rank=%s\n", ev.Scores, ev.Total, ev.Rank)
}

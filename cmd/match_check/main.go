package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/hetulpatel/crossarb/internal/collectors"
	"github.com/hetulpatel/crossarb/internal/extract"
	"github.com/hetulpatel/crossarb/internal/similarity"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
)

type breakdown struct {
	A      string            `json:"a"`
	B      string            `json:"b"`
	Result similarity.Result `json:"result"`
	Risk   similarity.Risk   `json:"risk"`
}

func main() {
	textA := flag.String("a", "", "first contract text")
	textB := flag.String("b", "", "second contract text")
	category := flag.String("category", "", "force a category (fed_rates, inflation, employment, economy, politics, crypto, markets, other)")
	contractID := flag.String("id", "", "stored contract id to find matches for")
	limit := flag.Int("k", 3, "number of top matches to print with -id")
	venue := flag.String("venue", "", "venue to search with -id (defaults to the opposite venue)")
	flag.Parse()

	switch {
	case *textA != "" && *textB != "":
		res := similarity.Score(*textA, *textB, extract.Category(*category))
		printJSON(breakdown{A: *textA, B: *textB, Result: res, Risk: similarity.AssessRisk(res)})
	case *contractID != "":
		findMatches(*contractID, *venue, *limit)
	default:
		fmt.Fprintln(os.Stderr, "usage: match_check -a TEXT -b TEXT [-category C] | -id CONTRACT [-k N] [-venue V]")
		os.Exit(2)
	}
}

func findMatches(contractID, venueName string, limit int) {
	store, err := sqlstore.Open(os.Getenv("SQLITE_PATH"))
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	source, ok, err := store.FindContract(ctx, contractID)
	if err != nil {
		log.Fatalf("find %s: %v", contractID, err)
	}
	if !ok {
		log.Fatalf("contract %s not found; run the scanner first so contracts are stored", contractID)
	}

	target := collectors.VenuePolymarket
	if source.Venue == collectors.VenuePolymarket {
		target = collectors.VenueKalshi
	}
	if venueName != "" {
		v, ok := collectors.ParseVenue(venueName)
		if !ok {
			log.Fatalf("unknown venue %q", venueName)
		}
		target = v
	}

	candidates, err := store.ListContracts(ctx, string(target))
	if err != nil {
		log.Fatalf("list %s contracts: %v", target, err)
	}

	doc := similarity.Analyze(source.MatchText())
	scored := make([]breakdown, 0, len(candidates))
	for _, c := range candidates {
		if c.Key() == source.Key() {
			continue
		}
		res := similarity.ScoreDocs(doc, similarity.Analyze(c.MatchText()), "")
		scored = append(scored, breakdown{A: source.Key(), B: c.Key(), Result: res, Risk: similarity.AssessRisk(res)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Result.Final > scored[j].Result.Final
	})
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	fmt.Printf("Source: %s %q\n", source.Key(), source.MatchText())
	fmt.Printf("Top %d matches in %s:\n\n", len(scored), target)
	byKey := make(map[string]string, len(candidates))
	for _, c := range candidates {
		byKey[c.Key()] = c.MatchText()
	}
	for i, s := range scored {
		fmt.Printf("[%d] %.4f %s | %s\n", i+1, s.Result.Final, s.Risk, s.B)
		fmt.Printf("    %s\n", byKey[s.B])
		fmt.Printf("    text=%.3f date=%.3f keyword=%.3f penalty=%.2f category=%s\n\n",
			s.Result.TextSimilarity, s.Result.DateAlignment, s.Result.KeywordScore, s.Result.Penalty, s.Result.Category)
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(b))
}

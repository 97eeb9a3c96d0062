package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/noah-isme/sma-adp-scoring/internal/dto"
	"github.com/noah-isme/sma-adp-scoring/internal/scoring"
)

type fixtureCase struct {
	Name     string           `json:"name"`
	Critical bool             `json:"critical"`
	Record   dto.LegacyRecord `json:"record"`
	Expected json.RawMessage  `json:"expected"`
}

type fixture struct {
	Cases []fixtureCase `json:"cases"`
}

type comparison struct {
	Case      fixtureCase
	BodyMatch bool
	Error     error
	Duration  time.Duration
	Actual    []byte
}

func main() {
	var (
		fixturePath string
		verbose     bool
	)

	flag.StringVar(&fixturePath, "fixture", filepath.Join("scripts", "legacy_compare", "fixtures.json"), "Path to JSON fixture file")
	flag.BoolVar(&verbose, "verbose", false, "Print the computed body for every mismatch")
	flag.Parse()

	cases, err := loadFixture(fixturePath)
	if err != nil {
		log.Fatalf("failed to load fixture: %v", err)
	}

	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)
	for _, c := range cases {
		comp := compareCase(c)
		if comp.Error != nil || !comp.BodyMatch {
			if c.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons, verbose)

	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadFixture(path string) ([]fixtureCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, err
	}
	if len(fx.Cases) == 0 {
		return nil, fmt.Errorf("no cases defined in %s", path)
	}
	return fx.Cases, nil
}

// compareCase runs a legacy record through the calculator and compares the
// legacy-shaped response with the recorded one.
func compareCase(c fixtureCase) comparison {
	comp := comparison{Case: c}
	start := time.Now()
	input := scoring.FromLegacyFormat(c.Record)
	result := scoring.CalculateFinalScore(input)
	response := scoring.ToLegacyFormat(result, input.StudentCode, input.StudentName)
	comp.Duration = time.Since(start)

	actual, err := json.Marshal(response)
	if err != nil {
		comp.Error = fmt.Errorf("encode response: %w", err)
		return comp
	}
	comp.Actual = actual
	comp.BodyMatch = bodiesEqual(actual, c.Expected)
	return comp
}

func bodiesEqual(a, b []byte) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	return reflect.DeepEqual(normalize(aj), normalize(bj))
}

// normalize collapses whole floats to int64 so 80 and 80.0 compare equal.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			val[k] = normalize(v2)
		}
		return val
	case []interface{}:
		for i, v2 := range val {
			val[i] = normalize(v2)
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
	}
	return v
}

func printReport(results []comparison, verbose bool) {
	fmt.Println("Legacy Compare Report")
	fmt.Println("=====================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s (%s)\n", status, res.Case.Name, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Body match: %t | Critical: %t\n", res.BodyMatch, res.Case.Critical)
		if verbose && !res.BodyMatch {
			fmt.Printf("  Actual: %s\n", res.Actual)
		}
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mgutz/ansi"

	"github.com/tigrawap/objload/internal/driver"
	"github.com/tigrawap/objload/internal/stats"
)

// report is the shape printed in JSON mode and marshalled for
// inspection; in human mode the same data drives printResult's text.
type report struct {
	TotalOperations  int64            `json:"total_operations"`
	TotalAborts      int64            `json:"total_aborts"`
	StatusCodeCounts map[int]int64    `json:"status_code_counts"`
	ElapsedSeconds   float64          `json:"elapsed_seconds"`
	StoppedReason    string           `json:"stopped_reason"`
	Operations       []stats.Summary  `json:"operations"`
}

func printResult(result *driver.Result, summaries []stats.Summary) {
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Operation < summaries[j].Operation })
	r := report{
		TotalOperations:  result.TotalOperations,
		TotalAborts:      result.TotalAborts,
		StatusCodeCounts: result.StatusCodeCounts,
		ElapsedSeconds:   result.Elapsed.Seconds(),
		StoppedReason:    result.StoppedReason,
		Operations:       summaries,
	}

	switch config.outputFormat {
	case formatJSON:
		printJSON(r)
	default:
		printHuman(r)
	}
}

func printJSON(r report) {
	b, err := json.Marshal(r)
	if err != nil {
		fmt.Println(err.Error())
		return
	}
	fmt.Println(string(b))
}

func printHuman(r report) {
	for _, op := range r.Operations {
		if op.Count == 0 {
			continue
		}
		fmt.Println("\n", ansi.Color(op.Operation, "blue+h"))
		fmt.Println("Total requests:", op.Count)
		for _, class := range []string{"2xx", "3xx", "4xx", "5xx", "error"} {
			if n, ok := op.StatusClasses[class]; ok && n > 0 {
				fmt.Println("  "+class+":", n)
			}
		}
		if op.Count > op.StatusClasses["error"] {
			fmt.Printf("Mean latency: %.2fms\n", op.LatencyMeanMs)
			fmt.Printf("Percentile 50: %.2fms\n", op.LatencyP50Ms)
			fmt.Printf("Percentile 95: %.2fms\n", op.LatencyP95Ms)
			fmt.Printf("Percentile 99: %.2fms\n", op.LatencyP99Ms)
		}
	}

	fmt.Println("\n", ansi.Color("Summary", "blue+h"))
	fmt.Println("Total operations:", r.TotalOperations)
	fmt.Println("Total aborts:", r.TotalAborts)
	for code, n := range r.StatusCodeCounts {
		fmt.Println("Status", code, "-", n)
	}
	fmt.Printf("Elapsed: %.2fs\n", r.ElapsedSeconds)
	fmt.Println("Stopped reason:", r.StoppedReason)
}

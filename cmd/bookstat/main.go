// bookstat is the offline batch analyzer: it reads the large-order records
// the monitor persists and summarizes the last N hours.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/FoxiClaus/orderwall/internal/record"
)

func main() {
	dir := flag.String("dir", "./data/records", "directory of persisted large-order records")
	hours := flag.Int("hours", 24, "analysis window in hours")
	flag.Parse()

	if *hours < 1 {
		fmt.Fprintln(os.Stderr, "hours must be >= 1")
		os.Exit(1)
	}

	sum, err := record.Analyze(*dir, *hours, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("records in the last %dh: %d\n", sum.Hours, sum.Entries)
	fmt.Printf("large bids: %d (mean qty %.4f)\n", sum.LargeBids, sum.MeanBidQty)
	fmt.Printf("large asks: %d (mean qty %.4f)\n", sum.LargeAsks, sum.MeanAskQty)
}

// Command logsim appends synthetic RTT-style device log lines to a file
// so the engine can be exercised without hardware attached.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"
)

func main() {
	var (
		out        string
		interval   time.Duration
		spikeEvery int
	)
	flag.StringVar(&out, "out", "/tmp/device-sentinel/latest.log", "log file to append to")
	flag.DurationVar(&interval, "interval", 50*time.Millisecond, "delay between lines")
	flag.IntVar(&spikeEvery, "spike-every", 120, "inject an anomalous burst every N lines (0 disables)")
	flag.Parse()

	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("open %s: %v", out, err)
	}
	defer f.Close()

	log.Printf("writing synthetic device log to %s", out)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	start := time.Now()
	for i := 0; ; i++ {
		elapsed := time.Since(start)
		stamp := fmt.Sprintf("[%02d:%02d:%06.3f]",
			int(elapsed.Hours()),
			int(elapsed.Minutes())%60,
			elapsed.Seconds()-float64(int(elapsed.Minutes()))*60,
		)

		var line string
		switch {
		case spikeEvery > 0 && i > 0 && i%spikeEvery == 0:
			line = fmt.Sprintf("%s BT/CONN: Interval: %d ms", stamp, 400+rng.Intn(200))
		case i%7 == 3:
			line = fmt.Sprintf("%s kernel: heap_free=%d", stamp, 7500+rng.Intn(1500))
		case i%23 == 11:
			line = fmt.Sprintf("%s BT/HCI: TX buffer full", stamp)
		case i%41 == 17:
			line = fmt.Sprintf("%s WRN: queue depth above watermark", stamp)
		default:
			line = fmt.Sprintf("%s BT/CONN: Interval: %d ms", stamp, 98+rng.Intn(5))
		}

		if _, err := fmt.Fprintln(f, line); err != nil {
			log.Fatalf("write: %v", err)
		}
		time.Sleep(interval)
	}
}

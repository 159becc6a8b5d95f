// Command setq provides a CLI tool for inspecting and managing setq queues.
package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/vnykmshr/setq"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "push":
		handlePush()
	case "front":
		handlePeek("front")
	case "back":
		handlePeek("back")
	case "popf":
		handlePop("popf")
	case "popb":
		handlePop("popb")
	case "stats":
		handleStats()
	case "clear":
		handleClear()
	case "version":
		fmt.Printf("setq version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("setq CLI Tool - Queue Inspection and Management")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  setq <command> <queue-dir> <queue-name> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  push <dir> <name> <value>...   Push values at the tail")
	fmt.Println("  front <dir> <name>             Peek the front value")
	fmt.Println("  back <dir> <name>              Peek the back value")
	fmt.Println("  popf <dir> <name>              Pop the front value")
	fmt.Println("  popb <dir> <name>              Pop the back value")
	fmt.Println("  stats <dir> <name>             Show queue statistics")
	fmt.Println("  clear <dir> <name>             Remove every queued value")
	fmt.Println("  version                        Show version information")
	fmt.Println("  help                           Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  setq push /var/lib/myqueue jobs job-1 job-2")
	fmt.Println("  setq popf /var/lib/myqueue jobs")
	fmt.Println("  setq stats /var/lib/myqueue jobs")
}

// openQueue opens the string queue named by arguments 2 and 3.
func openQueue(command string) *setq.Queue[string] {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "Error: queue directory and name required")
		fmt.Fprintf(os.Stderr, "Usage: setq %s <queue-dir> <queue-name>\n", command)
		os.Exit(1)
	}

	q, err := setq.Open[string](os.Args[2], os.Args[3])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening queue: %v\n", err)
		os.Exit(1)
	}
	return q
}

func handlePush() {
	if len(os.Args) < 5 {
		fmt.Fprintln(os.Stderr, "Error: at least one value required")
		fmt.Fprintln(os.Stderr, "Usage: setq push <queue-dir> <queue-name> <value>...")
		os.Exit(1)
	}

	q := openQueue("push")
	defer q.Close()

	for _, value := range os.Args[4:] {
		ok, err := q.PushBack(value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error pushing %q: %v\n", value, err)
			os.Exit(1)
		}
		if ok {
			fmt.Printf("pushed: %s\n", value)
		} else {
			fmt.Printf("duplicate, not pushed: %s\n", value)
		}
	}
}

func handlePeek(command string) {
	q := openQueue(command)
	defer q.Close()

	var (
		value string
		ok    bool
		err   error
	)
	if command == "front" {
		value, ok, err = q.Front()
	} else {
		value, ok, err = q.Back()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("(empty)")
		return
	}
	fmt.Println(value)
}

func handlePop(command string) {
	q := openQueue(command)
	defer q.Close()

	var (
		value string
		ok    bool
		err   error
	)
	if command == "popf" {
		value, ok, err = q.PopFront()
	} else {
		value, ok, err = q.PopBack()
	}
	if err != nil {
		if errors.Is(err, setq.ErrDesync) {
			fmt.Fprintln(os.Stderr, "Error: queue is out of sync; re-open and clear it to recover")
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Println("(empty)")
		return
	}
	fmt.Println(value)
}

func handleStats() {
	q := openQueue("stats")
	defer q.Close()

	stats, err := q.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stats: %v\n", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Queue Statistics")
	fmt.Fprintln(w, "================")
	fmt.Fprintf(w, "Directory:\t%s\n", os.Args[2])
	fmt.Fprintf(w, "Name:\t%s\n", stats.Name)
	fmt.Fprintf(w, "Length:\t%d\n", stats.Len)
	if stats.Len > 0 {
		fmt.Fprintf(w, "Front Key:\t%d\n", stats.FrontKey)
		fmt.Fprintf(w, "Back Key:\t%d\n", stats.BackKey)
		fmt.Fprintf(w, "Next Key:\t%d\n", stats.NextKey)
	}
	w.Flush()
}

func handleClear() {
	q := openQueue("clear")
	defer q.Close()

	if err := q.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "Error clearing queue: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("queue cleared")
}

// Command limitr serves named rate limiters over HTTP and exercises the
// limiting algorithms from the command line.
//
// Usage:
//
//	# Start the server
//	limitr run --config limitr.yaml
//
//	# Check a configuration file
//	limitr validate --config limitr.yaml
//
//	# Watch an algorithm at work
//	limitr demo token
//	limitr demo fixed --simulate
//
//	# Measure admission throughput of a limiter
//	limitr bench --algorithm token_bucket --capacity 1000 --rate 100 --workers 8
//
//	# Inspect and prune journaled decisions
//	limitr journal query --limiter api --allowed=false
//	limitr journal prune --older-than 24h
package main

func main() {
	Execute()
}

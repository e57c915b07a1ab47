package main

import "stream-anomaly-alerts/internal/cli"

func main() {
	cli.Execute()
}

package main

import "surveyreview/internal/cli"

func main() {
	cli.Execute()
}

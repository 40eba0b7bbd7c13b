package main

import "github.com/pdfmill/pdfmill/internal/cli"

func main() {
	cli.Execute()
}

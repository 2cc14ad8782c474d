package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("starting")
	defer fmt.Println("never runs")
	os.Exit(1) // want `do not call os.Exit in main.main`

	go func() {
		os.Exit(2) // nested literals are someone else's problem
	}()
}

func helper() {
	os.Exit(3)
}

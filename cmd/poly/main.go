// Package main provides the polytool CLI entry point.
package main

func main() {
	Execute()
}

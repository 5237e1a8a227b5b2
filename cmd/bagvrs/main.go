/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import (
	"os"

	"github.com/ssargent/bagvrs/cmd/bagvrs/cmd"
	"github.com/ssargent/bagvrs/pkg/di"
)

func main() {
	// Initialize dependency injection container
	container := di.NewContainer()

	// Inject dependencies into cmd package
	cmd.SetContainer(container)

	os.Exit(cmd.Execute())
}

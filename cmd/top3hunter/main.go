package main

import (
	"top3hunter/cmd/handlers"
	"top3hunter/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}

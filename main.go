package main

import "github.com/shouni/go-notice-bot/cmd"

func main() {
	cmd.Execute()
}

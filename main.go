package main

import "tracksync/internal/app"

func main() {
	app.Main()
}

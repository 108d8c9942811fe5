package main

import "turnpp/internal/app"

func main() {
	app.Main()
}

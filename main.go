package main

import "smartgriev/internal/app"

func main() {
	app.Main()
}

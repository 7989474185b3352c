package main

import "dirauth/server"

func main() {
	server.Main()
}

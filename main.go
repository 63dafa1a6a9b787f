package main

import "github.com/ValentinKolb/memento/cmd"

func main() {
	cmd.Execute()
}

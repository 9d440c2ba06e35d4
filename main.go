package main

import "github.com/inovacc/pagewright/cmd"

func main() {
	cmd.Execute()
}

package main

import "github.com/chrisdamba/messforecast/cmd"

func main() {
	cmd.Execute()
}

/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/materials-commons/mcupload/cmd/mcuploadd/cmd"

func main() {
	cmd.Execute()
}

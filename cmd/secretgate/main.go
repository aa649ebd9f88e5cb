// Command secretgate runs the secret-mediation gateway.
package main

import "github.com/secretgate/secretgate/cmd/secretgate/cmd"

func main() {
	cmd.Execute()
}

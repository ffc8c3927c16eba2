// The main package for the digest executable.
package main

import (
	"github.com/JakeFAU/devops-job-digest/cmd"
)

func main() {
	cmd.Execute()
}

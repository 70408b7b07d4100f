// Command hprofstream streams a heap dump through the analysis pipeline
// and reports the result as a table or JSON.
package main

import "github.com/hprofstream/hprofstream/cmd/hprofstream/cmd"

func main() {
	cmd.Execute()
}

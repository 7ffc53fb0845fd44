// Command manual opens a visible browser and waits for you to navigate to
// Metal Archives yourself before taking a snapshot.
package main

import (
	"os"

	"github.com/ibeckermayer/maprobe/internal/app"
	"github.com/ibeckermayer/maprobe/internal/config"
)

func main() {
	os.Exit(app.RunProfile(config.ProfileManual))
}

// Command maprobe opens the Metal Archives front page in a headless browser
// and logs what it finds there.
package main

import (
	"os"

	"github.com/ibeckermayer/maprobe/internal/app"
	"github.com/ibeckermayer/maprobe/internal/config"
)

func main() {
	os.Exit(app.RunProfile(config.ProfileBasic))
}

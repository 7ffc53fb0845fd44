// Command enhanced runs the probe with stealth browser flags, simulated
// activity and a wait for the Cloudflare interstitial to clear.
package main

import (
	"os"

	"github.com/ibeckermayer/maprobe/internal/app"
	"github.com/ibeckermayer/maprobe/internal/config"
)

func main() {
	os.Exit(app.RunProfile(config.ProfileEnhanced))
}

package panel

import "github.com/gen2brain/beeep"

func playErrorSound() {
	go func() {
		beeep.Beep(400, 300)
	}()
}

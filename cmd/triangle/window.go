package main

import sdl "github.com/NOT-REAL-GAMES/sdl3go"

// eventPump drains the SDL event queue each frame and remembers a quit
// request.
type eventPump struct {
	quit bool
}

func (p *eventPump) ShouldClose() bool {
	for event, ok := sdl.PollEvent(); ok; event, ok = sdl.PollEvent() {
		if event.Type == sdl.EVENT_QUIT {
			p.quit = true
		}
	}
	return p.quit
}

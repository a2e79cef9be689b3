package wsi

// init selects the real glfw backend when available, falling back to
// the dummy no-window backend otherwise (e.g. a headless CI runner
// with no display server).
func init() {
	if err := initGLFW(); err != nil {
		initDummy()
	}
}

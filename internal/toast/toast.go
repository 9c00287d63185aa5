package toast

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"proctoring/internal/violation"
)

// Terminal prints violation warnings to the console the way the browser
// surfaces react-toastify popups. Used by the standalone agent.
type Terminal struct {
	warn  *color.Color
	stamp *color.Color
}

func NewTerminal() *Terminal {
	return &Terminal{
		warn:  color.New(color.FgYellow, color.Bold),
		stamp: color.New(color.FgHiBlack),
	}
}

// Warn shows one warning toast for a counted violation.
func (t *Terminal) Warn(vt violation.Type, msg string) {
	t.stamp.Printf("[%s] ", time.Now().Format("15:04:05"))
	t.warn.Printf("WARNING (%s): ", vt)
	fmt.Println(msg)
}

// Silent discards warnings. Useful in tests and headless runs.
type Silent struct{}

func (Silent) Warn(violation.Type, string) {}
